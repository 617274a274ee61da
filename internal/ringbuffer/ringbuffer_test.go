package ringbuffer

import "testing"

func TestPushAdvancesByOneChunk(t *testing.T) {
	w := New(3, 2) // window of 6 samples, chunk of 2

	w.Push([]float64{1, 2})
	w.Push([]float64{3, 4})
	w.Push([]float64{5, 6})

	got := w.View()
	want := []float64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("View() = %v, want %v", got, want)
		}
	}
}

func TestPushShortReadZeroPadsAndDegrades(t *testing.T) {
	w := New(2, 4)

	degraded := w.Push([]float64{1, 1, 1})
	if !degraded {
		t.Fatal("expected degraded=true for a short read")
	}

	got := w.View()
	want := []float64{0, 0, 0, 0, 1, 1, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("View() = %v, want %v", got, want)
		}
	}
}

func TestPushExactLengthNotDegraded(t *testing.T) {
	w := New(2, 4)
	if w.Push([]float64{1, 2, 3, 4}) {
		t.Fatal("expected degraded=false for an exact-length chunk")
	}
}

func TestDownmixStereo(t *testing.T) {
	mono := DownmixStereo([]float32{1, 3, -1, -1})
	want := []float64{2, -1}
	for i := range want {
		if mono[i] != want[i] {
			t.Fatalf("DownmixStereo = %v, want %v", mono, want)
		}
	}
}
