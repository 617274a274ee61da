// Package featureassembler implements Component E: the three selectable
// note-normalization modes, the silence and noise-floor gates, and packing
// of the fixed 19-float wire frame.
package featureassembler

import (
	"encoding/binary"
	"math"

	"github.com/notedancer/notedancerd/internal/autogain"
)

// Mode selects how the raw chroma vector is turned into the emitted
// notes[0..11] vector.
type Mode int

const (
	ModeFixed Mode = iota
	ModeCompetitive
	ModeStatistical
)

// ParseMode maps the control plane's textual norm_mode to a Mode. ok is
// false for anything other than the three documented values.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "fixed":
		return ModeFixed, true
	case "competitive":
		return ModeCompetitive, true
	case "statistical":
		return ModeStatistical, true
	default:
		return 0, false
	}
}

func (m Mode) String() string {
	switch m {
	case ModeFixed:
		return "fixed"
	case ModeCompetitive:
		return "competitive"
	case ModeStatistical:
		return "statistical"
	default:
		return "unknown"
	}
}

const (
	numNotes = 12

	// noise-floor gate: -30 dBFS amplitude.
	noiseFloor = 0.03162277660168379 // 10^(-30/20)

	// fixed mode's dBFS-like mapping range.
	fixedMinDB = -40.0
	fixedMaxDB = 0.0

	eps = 1e-9
)

// Assembler is Component E.
type Assembler struct {
	// one independent AutoGain tracker per pitch class, used only by
	// ModeStatistical.
	perClass [numNotes]*autogain.State
}

// New creates a feature assembler. cfg configures the 12 per-class
// AutoGain trackers that back statistical mode.
func New(cfg autogain.Config) *Assembler {
	a := &Assembler{}
	for i := range a.perClass {
		a.perClass[i] = autogain.New(cfg)
	}
	return a
}

// Gamma derives the competitive/statistical contrast exponent from
// note_sensitivity s in [0.5, 0.98]: higher sensitivity sharpens the
// spotlight on the loudest pitch class.
func Gamma(noteSensitivity float64) float64 {
	denom := 1 - noteSensitivity
	if denom < eps {
		denom = eps
	}
	return 1 / denom
}

// Assemble transforms a frame's raw chroma vector into the emitted notes
// vector per the given mode, applying the silence gate and the
// noise-floor gate.
func (a *Assembler) Assemble(chromaRaw [numNotes]float64, windowRMS, silenceThreshold, noteSensitivity float64, mode Mode) [numNotes]float64 {
	if windowRMS < silenceThreshold {
		var zero [numNotes]float64
		return zero
	}

	var notes [numNotes]float64
	switch mode {
	case ModeFixed:
		notes = assembleFixed(chromaRaw)
	case ModeCompetitive:
		notes = assembleCompetitive(chromaRaw, Gamma(noteSensitivity))
	case ModeStatistical:
		notes = a.assembleStatistical(chromaRaw, Gamma(noteSensitivity))
	default:
		notes = assembleCompetitive(chromaRaw, Gamma(noteSensitivity))
	}

	for i, n := range notes {
		if n < noiseFloor {
			notes[i] = 0
		}
	}
	return notes
}

func assembleFixed(c [numNotes]float64) [numNotes]float64 {
	var out [numNotes]float64
	for i, ci := range c {
		d := 20 * math.Log10(math.Max(ci, eps))
		out[i] = clip01((d - fixedMinDB) / (fixedMaxDB - fixedMinDB))
	}
	return out
}

func assembleCompetitive(c [numNotes]float64, gamma float64) [numNotes]float64 {
	var out [numNotes]float64
	m := maxOf(c)
	if m < eps {
		return out
	}
	for i, ci := range c {
		out[i] = applyContrast(ci/m, gamma)
	}
	return out
}

// assembleStatistical feeds each pitch class through its own AutoGain
// ceiling, then applies the same contrast curve as competitive mode.
func (a *Assembler) assembleStatistical(c [numNotes]float64, gamma float64) [numNotes]float64 {
	var out [numNotes]float64
	for i, ci := range c {
		ceiling := a.perClass[i].Update(ci)
		out[i] = applyContrast(autogain.Clip01(ci/ceiling), gamma)
	}
	return out
}

// applyContrast raises a value already in [0, 1] to the gamma power,
// sharing one curve between competitive and statistical modes.
func applyContrast(x, gamma float64) float64 {
	x = clip01(x)
	return math.Pow(x, gamma)
}

func maxOf(c [numNotes]float64) float64 {
	m := c[0]
	for _, v := range c[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Frame is the wire payload: the fixed 19-float feature frame (§3, §6).
type Frame struct {
	Brightness float32
	Flux       float32
	Low        float32
	Mid        float32
	High       float32
	BPM        float32
	IsBeat     float32
	Notes      [numNotes]float32
}

// FrameSize is the little-endian packed record size: 19 floats.
const FrameSize = (7 + numNotes) * 4

// Bytes packs the frame in the fixed wire order: brightness, flux, low,
// mid, high, bpm, is_beat, notes[0..11].
func (f Frame) Bytes() []byte {
	buf := make([]byte, FrameSize)
	offset := 0
	put := func(v float32) {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	put(f.Brightness)
	put(f.Flux)
	put(f.Low)
	put(f.Mid)
	put(f.High)
	put(f.BPM)
	put(f.IsBeat)
	for _, n := range f.Notes {
		put(n)
	}
	return buf
}

// FromBytes unpacks a wire frame. It does not validate ranges; the caller
// decides whether to trust the payload.
func FromBytes(data []byte) (Frame, bool) {
	if len(data) != FrameSize {
		return Frame{}, false
	}
	offset := 0
	get := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		return v
	}
	var f Frame
	f.Brightness = get()
	f.Flux = get()
	f.Low = get()
	f.Mid = get()
	f.High = get()
	f.BPM = get()
	f.IsBeat = get()
	for i := range f.Notes {
		f.Notes[i] = get()
	}
	return f, true
}
