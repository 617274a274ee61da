// Package banddsp implements Component B: three-band filtering, per-band
// RMS, AutoGain-normalized loudness, user gain, and asymmetric
// attack/decay smoothing.
package banddsp

import (
	"math"

	"github.com/notedancer/notedancerd/internal/autogain"
)

// GainParams is the subset of the control-plane snapshot the band chain
// reads each frame. It is passed by value so a frame's worth of
// processing never observes a parameter change mid-frame.
type GainParams struct {
	LowGain, MidGain, HighGain float64
	LowAttack, LowDecay        float64
	MidAttack, MidDecay        float64
	HighAttack, HighDecay      float64
}

// band holds one band's filter chain, AutoGain tracker, and smoothed
// output. Its filter memory persists between chunks by design (§4.B:
// "filter memory carries between chunks").
type band struct {
	filters  []*biquad
	autogain *autogain.State
	smoothed float64
}

func (b *band) process(chunk []float64, userGain, attack, decay, silenceThreshold float64) (out, rawRMS float64) {
	rawRMS = filteredRMS(b.filters, chunk)

	var target float64
	if rawRMS < silenceThreshold {
		target = 0
		// Silence gate: the AutoGain tracker is not fed a sample this
		// frame, so a quiet passage doesn't drag the ceiling down.
	} else {
		ceiling := b.autogain.Update(rawRMS)
		normalized := autogain.Clip01(rawRMS / ceiling)
		target = autogain.Clip01(normalized * userGain)
	}

	if userGain == 0 || rawRMS < silenceThreshold {
		// A zeroed user gain or a silent band must silence the band
		// outright, not decay toward zero over several frames' worth of
		// smoothing.
		b.smoothed = 0
	} else if target >= b.smoothed {
		b.smoothed += attack * (target - b.smoothed)
	} else {
		b.smoothed += decay * (target - b.smoothed)
	}
	return b.smoothed, rawRMS
}

func filteredRMS(filters []*biquad, chunk []float64) float64 {
	var sumSq float64
	for _, x := range chunk {
		y := chain(filters, x)
		sumSq += y * y
	}
	return math.Sqrt(sumSq / float64(len(chunk)))
}

// Config configures the three band filters and their AutoGain trackers.
type Config struct {
	SampleRate   int
	LowCutoffHz  float64
	HighCutoffHz float64
	AutoGain     autogain.Config
}

// Chain is Component B: the three-band DSP chain.
type Chain struct {
	low, mid, high *band
}

// New builds the three band filters (4th-order Butterworth lowpass,
// bandpass, highpass) and their AutoGain trackers.
func New(cfg Config) *Chain {
	sr := float64(cfg.SampleRate)
	return &Chain{
		low: &band{
			filters:  newButterworthLowpass(cfg.LowCutoffHz, sr),
			autogain: autogain.New(cfg.AutoGain),
		},
		mid: &band{
			filters:  newButterworthBandpass(cfg.LowCutoffHz, cfg.HighCutoffHz, sr),
			autogain: autogain.New(cfg.AutoGain),
		},
		high: &band{
			filters:  newButterworthHighpass(cfg.HighCutoffHz, sr),
			autogain: autogain.New(cfg.AutoGain),
		},
	}
}

// Result is the per-frame output of the band DSP chain.
type Result struct {
	Low, Mid, High float64
	// raw pre-gain RMS values, useful for diagnostics and tests.
	RawLow, RawMid, RawHigh float64
}

// Process runs one chunk through all three bands.
func (c *Chain) Process(chunk []float64, p GainParams, silenceThreshold float64) Result {
	low, rawLow := c.low.process(chunk, p.LowGain, p.LowAttack, p.LowDecay, silenceThreshold)
	mid, rawMid := c.mid.process(chunk, p.MidGain, p.MidAttack, p.MidDecay, silenceThreshold)
	high, rawHigh := c.high.process(chunk, p.HighGain, p.HighAttack, p.HighDecay, silenceThreshold)
	return Result{
		Low: low, Mid: mid, High: high,
		RawLow: rawLow, RawMid: rawMid, RawHigh: rawHigh,
	}
}

// Ceilings returns the current AutoGain ceiling for each band, in
// low/mid/high order. Diagnostic only: nothing in the DSP path reads it
// back, it exists for the engine's periodic summary log.
func (c *Chain) Ceilings() (low, mid, high float64) {
	return c.low.autogain.Ceiling(), c.mid.autogain.Ceiling(), c.high.autogain.Ceiling()
}
