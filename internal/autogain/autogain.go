// Package autogain implements the percentile-based soft-ceiling loudness
// tracker shared by the per-band normalizer and the statistical
// note-normalization mode. It maintains a slowly-drifting ceiling against
// which input is normalized, with asymmetric attack/decay time constants.
package autogain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Config configures one AutoGain tracker.
type Config struct {
	// N is the length of the recent-maxima ring, roughly HistorySeconds
	// worth of frames.
	N int
	// Percentile is the soft-ceiling target, p in (0, 1).
	Percentile float64
	// AttackTau and DecayTau are exponential time constants in seconds.
	AttackTau float64
	DecayTau  float64
	// Floor is the hard lower bound on the ceiling, epsilon.
	Floor float64
	// FramePeriod is the wall-clock duration of one update, in seconds
	// (one chunk at the configured sample rate).
	FramePeriod float64
}

// NewConfig builds a Config from a history length in seconds, deriving N
// from the frame period.
func NewConfig(historySeconds, percentile, attackTau, decayTau, floor, framePeriod float64) Config {
	n := int(historySeconds/framePeriod + 0.5)
	if n < 1 {
		n = 1
	}
	return Config{
		N:           n,
		Percentile:  percentile,
		AttackTau:   attackTau,
		DecayTau:    decayTau,
		Floor:       floor,
		FramePeriod: framePeriod,
	}
}

// State is one AutoGain tracker. It is not safe for concurrent use; each
// band and each statistical-mode pitch class owns its own instance on the
// analysis thread.
type State struct {
	cfg     Config
	ring    []float64
	pos     int
	filled  int
	ceiling float64
	scratch []float64 // reused sort buffer, avoids steady-state allocation
}

// New creates an AutoGain tracker. The ceiling starts at the floor. The
// percentile query only considers values pushed so far, so until the ring
// has wrapped once the soft ceiling is taken over the pushed values alone.
func New(cfg Config) *State {
	ring := make([]float64, cfg.N)
	for i := range ring {
		ring[i] = cfg.Floor
	}
	return &State{
		cfg:     cfg,
		ring:    ring,
		ceiling: cfg.Floor,
		scratch: make([]float64, cfg.N),
	}
}

// Update pushes x into the recent-maxima ring, computes the percentile
// soft-ceiling target, and steps the ceiling toward it with the
// appropriate attack or decay time constant. It returns the new ceiling,
// which always satisfies Floor <= C.
func (s *State) Update(x float64) float64 {
	s.ring[s.pos] = x
	s.pos = (s.pos + 1) % len(s.ring)
	if s.filled < len(s.ring) {
		s.filled++
	}

	copy(s.scratch[:s.filled], s.ring[:s.filled])
	sorted := s.scratch[:s.filled]
	sort.Float64s(sorted)

	target := stat.Quantile(s.cfg.Percentile, stat.Empirical, sorted, nil)
	if target < s.cfg.Floor {
		target = s.cfg.Floor
	}

	if target > s.ceiling {
		alpha := 1 - math.Exp(-s.cfg.FramePeriod/s.cfg.AttackTau)
		s.ceiling += (target - s.ceiling) * alpha
	} else {
		alpha := 1 - math.Exp(-s.cfg.FramePeriod/s.cfg.DecayTau)
		s.ceiling += (target - s.ceiling) * alpha
		if s.ceiling < s.cfg.Floor {
			s.ceiling = s.cfg.Floor
		}
	}

	return s.ceiling
}

// Ceiling returns the current ceiling without updating it.
func (s *State) Ceiling() float64 {
	return s.ceiling
}

// Normalize clips x/C to [0, 1] using the current ceiling. It does not
// update the tracker; callers decide whether a given sample should feed
// the tracker (e.g. the silence gate in the band DSP chain skips it).
func (s *State) Normalize(x float64) float64 {
	return Clip01(x / s.ceiling)
}

// Clip01 clamps v to [0, 1].
func Clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
