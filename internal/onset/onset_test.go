package onset

import "testing"

func testTracker(framePeriod float64) *Tracker {
	cfg := NewConfig(1.5, 0.060, 1.0, 30, 0.005, 2.0, framePeriod, 90, 180)
	return New(cfg)
}

func TestNoBPMBeforeAnyOnset(t *testing.T) {
	tr := testTracker(1024.0 / 48000.0)
	for i := 0; i < 50; i++ {
		r := tr.Process(0)
		if r.BPM != 0 {
			t.Fatalf("frame %d: expected bpm=0 before any onset, got %g", i, r.BPM)
		}
		if r.IsBeat {
			t.Fatalf("frame %d: unexpected beat on silent flux", i)
		}
	}
}

func TestHedgeBPMDoublesBelowRangeAndHalvesAboveRange(t *testing.T) {
	cases := []struct {
		in, wantMin, wantMax float64
	}{
		{45, 90, 180},  // doubles once: 90
		{30, 90, 180},  // doubles twice: 120
		{200, 90, 180}, // halves once: 100
		{400, 90, 180}, // halves twice: 100
	}
	for _, c := range cases {
		got := hedgeBPM(c.in, 90, 180)
		if got < c.wantMin || got > c.wantMax {
			t.Errorf("hedgeBPM(%g) = %g, want in [%g, %g]", c.in, got, c.wantMin, c.wantMax)
		}
	}
}

func TestClickTrainConvergesNearTargetBPM(t *testing.T) {
	sampleRate := 48000.0
	chunkSize := 1024.0
	framePeriod := chunkSize / sampleRate
	tr := testTracker(framePeriod)

	// 2 Hz click train = 120 BPM.
	clickIntervalSec := 0.5
	totalSeconds := 5.0
	frames := int(totalSeconds / framePeriod)

	nextClick := 0.0
	elapsed := 0.0
	var lastBPM float64
	for i := 0; i < frames; i++ {
		flux := 0.0
		if elapsed >= nextClick {
			flux = 10.0 // sharp transient well above the adaptive threshold
			nextClick += clickIntervalSec
		}
		r := tr.Process(flux)
		elapsed += framePeriod
		lastBPM = r.BPM
	}

	if lastBPM < 110 || lastBPM > 130 {
		t.Fatalf("expected hedged bpm to converge near 120, got %g", lastBPM)
	}
}

func TestIsBeatRespectsRefractoryInterval(t *testing.T) {
	framePeriod := 1024.0 / 48000.0 // ~21.3ms
	tr := testTracker(framePeriod)

	// A spike every frame is well inside the 60ms refractory interval, so
	// at most 1 beat in every 3 consecutive frames may be declared.
	lastBeatFrame := -1000
	for i := 0; i < 30; i++ {
		r := tr.Process(10.0)
		if r.IsBeat {
			if i-lastBeatFrame < 3 {
				t.Fatalf("frame %d: beat declared only %d frames after the previous one, violating the refractory interval", i, i-lastBeatFrame)
			}
			lastBeatFrame = i
		}
	}
}
