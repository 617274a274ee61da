// Package ringbuffer assembles incoming mono chunks into an
// overlap-capable analysis window. It is Component A of the pipeline:
// mutated only by the frame scheduler, shared read-only with the spectral
// core.
package ringbuffer

// Window holds the most recent WindowChunks*ChunkSize mono samples. The
// window advances by exactly one chunk per Push call (hop = chunk).
type Window struct {
	data      []float64
	chunkSize int
}

// New creates a Window of windowChunks*chunkSize samples, initialized to
// silence.
func New(windowChunks, chunkSize int) *Window {
	return &Window{
		data:      make([]float64, windowChunks*chunkSize),
		chunkSize: chunkSize,
	}
}

// Push appends one chunk to the window, discarding the oldest chunk's
// worth of samples. If chunk is shorter than the configured chunk size
// (a short read from the capture collaborator), it is zero-padded and
// degraded is reported true; the frame is still produced. If chunk is
// longer, it is truncated to the configured chunk size.
func (w *Window) Push(chunk []float64) (degraded bool) {
	n := w.chunkSize
	var tail []float64
	switch {
	case len(chunk) == n:
		tail = chunk
	case len(chunk) > n:
		// Overflow: tolerated silently per spec.md §6, not a degraded frame.
		tail = chunk[:n]
	default:
		degraded = true
		padded := make([]float64, n)
		copy(padded, chunk)
		tail = padded
	}

	copy(w.data, w.data[n:])
	copy(w.data[len(w.data)-n:], tail)
	return degraded
}

// View returns the current analysis window. Callers must treat the
// returned slice as read-only: it aliases internal storage and is
// invalidated by the next Push.
func (w *Window) View() []float64 {
	return w.data
}

// ChunkSize returns the configured chunk size.
func (w *Window) ChunkSize() int {
	return w.chunkSize
}

// DownmixStereo averages interleaved stereo samples into mono. Chunks
// delivered already mono by the capture collaborator should skip this.
func DownmixStereo(interleaved []float32) []float64 {
	n := len(interleaved) / 2
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		mono[i] = (float64(interleaved[2*i]) + float64(interleaved[2*i+1])) / 2.0
	}
	return mono
}

// ToFloat64 converts a mono float32 chunk (the capture contract's native
// representation) to float64 for the analysis pipeline.
func ToFloat64(chunk []float32) []float64 {
	out := make([]float64, len(chunk))
	for i, v := range chunk {
		out[i] = float64(v)
	}
	return out
}
