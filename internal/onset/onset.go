// Package onset implements Component D: transient onset detection on the
// unclipped percussive flux stream, and tempo inference from inter-onset
// intervals with BPM hedging into [BPMMin, BPMMax].
package onset

import (
	"math"
	"sort"
)

// Config configures the onset/tempo tracker.
type Config struct {
	K                float64 // threshold = mean + K*stddev of recent flux
	RefractorySec    float64
	HistoryFrames    int // ~1s worth of flux history for the adaptive threshold
	IntervalCapacity int // N, last N inter-onset intervals feed the tempo histogram
	BinWidthSec      float64
	SmoothTauSec     float64
	FramePeriod      float64
	BPMMin, BPMMax   float64
}

// NewConfig derives frame-based capacities from second-based tunables.
func NewConfig(k, refractorySec, historySeconds float64, intervalCapacity int, binWidthSec, smoothTauSec, framePeriod, bpmMin, bpmMax float64) Config {
	historyFrames := int(historySeconds/framePeriod + 0.5)
	if historyFrames < 1 {
		historyFrames = 1
	}
	return Config{
		K:                k,
		RefractorySec:    refractorySec,
		HistoryFrames:    historyFrames,
		IntervalCapacity: intervalCapacity,
		BinWidthSec:      binWidthSec,
		SmoothTauSec:     smoothTauSec,
		FramePeriod:      framePeriod,
		BPMMin:           bpmMin,
		BPMMax:           bpmMax,
	}
}

// Tracker is Component D.
type Tracker struct {
	cfg Config

	fluxHistory []float64
	elapsed     float64 // total wall-clock time processed, seconds
	lastOnset   float64 // elapsed at the last declared onset; meaningful only once haveOnset is true
	haveOnset   bool

	intervals []float64 // ring of the last IntervalCapacity inter-onset intervals

	smoothedBPM float64
}

// New creates an onset/tempo tracker.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:       cfg,
		lastOnset: 0,
	}
}

// Result is one frame's onset/tempo output.
type Result struct {
	IsBeat bool
	BPM    float64 // hedged and smoothed; 0 before any onset has been observed
}

// Process consumes one frame's unclipped flux value and returns whether
// this frame declares a beat, plus the current smoothed, hedged BPM.
func (t *Tracker) Process(fluxRaw float64) Result {
	t.elapsed += t.cfg.FramePeriod

	t.fluxHistory = pushRing(t.fluxHistory, fluxRaw, t.cfg.HistoryFrames)
	mean, stddev := meanStddev(t.fluxHistory)
	threshold := mean + t.cfg.K*stddev

	sinceLast := t.elapsed - t.lastOnset
	candidate := fluxRaw > threshold
	declared := candidate && (!t.haveOnset || sinceLast >= t.cfg.RefractorySec)

	if declared {
		if t.haveOnset {
			t.intervals = pushRing(t.intervals, sinceLast, t.cfg.IntervalCapacity)
		}
		t.lastOnset = t.elapsed
		t.haveOnset = true
	}

	if len(t.intervals) == 0 {
		t.smoothedBPM = 0
		return Result{IsBeat: declared, BPM: 0}
	}

	modeInterval := histogramMode(t.intervals, t.cfg.BinWidthSec)
	bpmRaw := 60.0 / modeInterval
	hedged := hedgeBPM(bpmRaw, t.cfg.BPMMin, t.cfg.BPMMax)

	if t.smoothedBPM == 0 {
		t.smoothedBPM = hedged
	} else {
		alpha := 1 - math.Exp(-t.cfg.FramePeriod/t.cfg.SmoothTauSec)
		t.smoothedBPM += (hedged - t.smoothedBPM) * alpha
	}

	return Result{IsBeat: declared, BPM: t.smoothedBPM}
}

// hedgeBPM doubles a too-slow estimate or halves a too-fast one until it
// lies in [bpmMin, bpmMax].
func hedgeBPM(bpm, bpmMin, bpmMax float64) float64 {
	for bpm > 0 && bpm < bpmMin {
		bpm *= 2
	}
	for bpm > bpmMax {
		bpm /= 2
	}
	return bpm
}

func pushRing(ring []float64, v float64, capacity int) []float64 {
	ring = append(ring, v)
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	return ring
}

func meanStddev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	var sqSum float64
	for _, x := range xs {
		d := x - mean
		sqSum += d * d
	}
	stddev = math.Sqrt(sqSum / float64(len(xs)))
	return mean, stddev
}

// histogramMode buckets intervals into bins of width binWidth and returns
// the center of the most populous bin, inverted to BPM by the caller.
func histogramMode(intervals []float64, binWidth float64) float64 {
	if len(intervals) == 0 || binWidth <= 0 {
		return 0
	}

	bins := make(map[int]int)
	for _, v := range intervals {
		bins[int(math.Round(v/binWidth))]++
	}

	bestBin := 0
	bestCount := -1
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys) // deterministic tie-break: the lowest (fastest tempo) bin wins
	for _, k := range keys {
		if bins[k] > bestCount {
			bestCount = bins[k]
			bestBin = k
		}
	}

	return float64(bestBin) * binWidth
}
