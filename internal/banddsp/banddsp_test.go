package banddsp

import (
	"testing"

	"github.com/notedancer/notedancerd/internal/autogain"
)

func testChain() *Chain {
	return New(Config{
		SampleRate:   48000,
		LowCutoffHz:  150,
		HighCutoffHz: 4000,
		AutoGain:     autogain.NewConfig(15, 0.90, 0.1, 15.0, 1e-4, 1024.0/48000.0),
	})
}

func fullGainParams() GainParams {
	return GainParams{
		LowGain: 1, MidGain: 1, HighGain: 1,
		LowAttack: 1, LowDecay: 1,
		MidAttack: 1, MidDecay: 1,
		HighAttack: 1, HighDecay: 1,
	}
}

func TestSilenceProducesZeroBands(t *testing.T) {
	c := testChain()
	chunk := make([]float64, 1024)

	for i := 0; i < 20; i++ {
		r := c.Process(chunk, fullGainParams(), 0.01)
		if r.Low != 0 || r.Mid != 0 || r.High != 0 {
			t.Fatalf("frame %d: expected all-zero bands on silence, got %+v", i, r)
		}
	}
}

func TestOutputsStayWithinUnitRange(t *testing.T) {
	c := testChain()
	chunk := make([]float64, 1024)
	for i := range chunk {
		// loud, broadband-ish signal
		chunk[i] = 0.9
		if i%2 == 0 {
			chunk[i] = -0.9
		}
	}

	for i := 0; i < 50; i++ {
		r := c.Process(chunk, fullGainParams(), 0.01)
		for _, v := range []float64{r.Low, r.Mid, r.High} {
			if v < 0 || v > 1 {
				t.Fatalf("frame %d: band value %g out of [0,1]", i, v)
			}
		}
	}
}

func TestZeroGainForcesZeroOutputRegardlessOfInput(t *testing.T) {
	c := testChain()
	chunk := make([]float64, 1024)
	for i := range chunk {
		chunk[i] = 0.9
	}
	params := fullGainParams()
	params.LowGain = 0

	for i := 0; i < 10; i++ {
		r := c.Process(chunk, params, 0.01)
		if r.Low != 0 {
			t.Fatalf("frame %d: expected low=0 with low_gain=0, got %g", i, r.Low)
		}
	}
}
