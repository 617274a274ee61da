// Package spectral implements Component C: STFT magnitude spectrum, an
// HPSS approximation via median filtering, chroma folding, spectral
// centroid (brightness), and spectral flux.
package spectral

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	chromaBins       = 12
	chromaMinFreqHz  = 80.0
	chromaMaxFreqHz  = 5000.0
	a4FreqHz         = 440.0
	aPitchClassIndex = 9 // "A" in the C, C#, D, ..., A, A#, B ordering
	medianKernel     = 31
	timeHistoryLen   = 3
	fluxHistoryLen   = 20
	eps              = 1e-9
)

// Config configures the spectral core.
type Config struct {
	SampleRate int
	FFTSize    int
}

// Result is one frame's worth of spectral features.
type Result struct {
	Brightness float64 // normalized to [0, 1] (centroid / Nyquist)
	FluxRaw    float64 // unclipped, feeds onset detection
	FluxClip   float64 // clipped to [0, 1], the emitted feature
	ChromaRaw  [chromaBins]float64
}

// Core is Component C.
type Core struct {
	sampleRate int
	fftSize    int
	fft        *fourier.FFT
	win        []float64

	specHistory [][]float64 // ring of up to timeHistoryLen recent magnitude spectra, most recent last
	prevP       []float64   // previous frame's percussive magnitude, for flux
	fluxHistory []float64   // ring of the last fluxHistoryLen raw flux values

	chromaMap []int // precomputed FFT bin -> chroma bin (-1 if excluded)
}

// New builds a spectral core for the given FFT size and sample rate.
func New(cfg Config) *Core {
	win := make([]float64, cfg.FFTSize)
	for i := range win {
		win[i] = 1
	}
	win = window.Hann(win)

	c := &Core{
		sampleRate: cfg.SampleRate,
		fftSize:    cfg.FFTSize,
		fft:        fourier.NewFFT(cfg.FFTSize),
		win:        win,
	}
	c.chromaMap = buildChromaMap(cfg.FFTSize, cfg.SampleRate)
	return c
}

// Process analyzes the tail of win (the most recent FFTSize samples of the
// rolling analysis window) and returns one frame of spectral features.
func (c *Core) Process(win []float64, fluxSens float64) Result {
	tail := win
	if len(tail) > c.fftSize {
		tail = tail[len(tail)-c.fftSize:]
	}

	windowed := make([]float64, c.fftSize)
	copy(windowed, tail)
	for i := range windowed {
		windowed[i] *= c.win[i]
	}

	coeffs := c.fft.Coefficients(nil, windowed)
	mag := make([]float64, c.fftSize/2+1)
	for i := range mag {
		mag[i] = cmplxAbs(coeffs[i])
	}

	harmonic := c.medianFilterTime(mag)
	percussive := medianFilterFreq(mag, medianKernel)

	h := make([]float64, len(mag))
	p := make([]float64, len(mag))
	for i, m := range mag {
		denom := harmonic[i] + percussive[i] + eps
		h[i] = (harmonic[i] / denom) * m
		p[i] = (percussive[i] / denom) * m
	}

	chromaRaw := c.foldChroma(h)
	brightness := autogainFreeClip(centroid(mag, c.sampleRate, c.fftSize) / nyquist(c.sampleRate))

	fluxRaw := 0.0
	if c.prevP != nil {
		fluxRaw = positiveFlux(p, c.prevP)
	}
	c.prevP = p

	c.fluxHistory = pushRing(c.fluxHistory, fluxRaw, fluxHistoryLen)
	avgFlux := meanOf(c.fluxHistory)
	var fluxScaled float64
	if avgFlux > eps {
		fluxScaled = fluxRaw / avgFlux
	}
	fluxClip := autogainFreeClip(fluxScaled * fluxSens)

	return Result{
		Brightness: brightness,
		FluxRaw:    fluxRaw,
		FluxClip:   fluxClip,
		ChromaRaw:  chromaRaw,
	}
}

func cmplxAbs(c complex128) float64 {
	re, im := real(c), imag(c)
	return math.Sqrt(re*re + im*im)
}

func nyquist(sampleRate int) float64 {
	return float64(sampleRate) / 2.0
}

func autogainFreeClip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func centroid(mag []float64, sampleRate, fftSize int) float64 {
	freqPerBin := float64(sampleRate) / float64(fftSize)
	var weighted, sum float64
	for i, m := range mag {
		freq := float64(i) * freqPerBin
		weighted += freq * m
		sum += m
	}
	if sum < eps {
		return 0
	}
	return weighted / sum
}

func positiveFlux(cur, prev []float64) float64 {
	var flux float64
	for i := range cur {
		d := cur[i] - prev[i]
		if d > 0 {
			flux += d
		}
	}
	return flux
}

func pushRing(ring []float64, v float64, capacity int) []float64 {
	ring = append(ring, v)
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	return ring
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// medianFilterFreq approximates the percussive component by median
// filtering the magnitude spectrum along the frequency axis with an odd
// kernel, edge-clamped: a broadband transient has roughly uniform energy
// across nearby bins and survives the median, while a narrow tonal peak
// differs sharply from its neighbors and is smeared toward their level.
func medianFilterFreq(mag []float64, kernel int) []float64 {
	half := kernel / 2
	out := make([]float64, len(mag))
	window := make([]float64, 0, kernel)
	for i := range mag {
		window = window[:0]
		for k := -half; k <= half; k++ {
			idx := i + k
			if idx < 0 {
				idx = 0
			}
			if idx >= len(mag) {
				idx = len(mag) - 1
			}
			window = append(window, mag[idx])
		}
		out[i] = medianOf(window)
	}
	return out
}

// medianFilterTime approximates the harmonic component by median
// filtering across the last few spectra (current plus up to
// timeHistoryLen-1 priors) at each frequency bin: a sustained tone stays
// put across frames, so its magnitude survives a short time-axis median,
// while a transient is smeared away by it.
func (c *Core) medianFilterTime(mag []float64) []float64 {
	c.specHistory = append(c.specHistory, mag)
	if len(c.specHistory) > timeHistoryLen {
		c.specHistory = c.specHistory[len(c.specHistory)-timeHistoryLen:]
	}

	out := make([]float64, len(mag))
	col := make([]float64, 0, timeHistoryLen)
	for i := range mag {
		col = col[:0]
		for _, spec := range c.specHistory {
			col = append(col, spec[i])
		}
		out[i] = medianOf(col)
	}
	return out
}

func medianOf(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// buildChromaMap precomputes, for each FFT bin, which of the 12 chroma
// bins it folds into (-1 if the bin's frequency falls outside
// [chromaMinFreqHz, chromaMaxFreqHz]).
func buildChromaMap(fftSize, sampleRate int) []int {
	freqPerBin := float64(sampleRate) / float64(fftSize)
	n := fftSize/2 + 1
	mapping := make([]int, n)
	for i := range mapping {
		freq := float64(i) * freqPerBin
		if freq < chromaMinFreqHz || freq > chromaMaxFreqHz {
			mapping[i] = -1
			continue
		}
		// A4 (440 Hz) is pitch class "A", which sits at index 9 in the
		// C-first pitch-class ordering (C, C#, D, ..., A, A#, B); shift
		// the raw octave-folded offset from the reference frequency by
		// that amount so the vector lines up with the documented order.
		pc := int(math.Round(12*math.Log2(freq/a4FreqHz))) + aPitchClassIndex
		mapping[i] = ((pc % chromaBins) + chromaBins) % chromaBins
	}
	return mapping
}

// foldChroma sums harmonic-component magnitudes per pitch class. The
// result is the raw summed harmonic energy per class: mode-specific
// normalization happens downstream in the feature assembler, not here.
func (c *Core) foldChroma(h []float64) [chromaBins]float64 {
	var out [chromaBins]float64
	for i, m := range h {
		if i >= len(c.chromaMap) {
			break
		}
		bin := c.chromaMap[i]
		if bin < 0 {
			continue
		}
		out[bin] += m
	}
	return out
}
