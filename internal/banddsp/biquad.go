package banddsp

import "math"

// butterworthQs are the per-section Q values for a 4th-order Butterworth
// response realized as a cascade of two 2nd-order sections (Q =
// 1/(2*cos(theta)) for theta = pi/8 and 3*pi/8).
var butterworthQs = [2]float64{0.5411961, 1.3065630}

// biquad is a single second-order IIR section in the RBJ cookbook
// parameterization, evaluated in direct-form-II-transposed. Its memory
// (z1, z2) persists across Process calls by design: filter state carries
// between chunks, not just within one.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (b *biquad) process(x float64) float64 {
	y := b.b0*x + b.z1
	b.z1 = b.b1*x + b.z2 - b.a1*y
	b.z2 = b.b2*x - b.a2*y
	return y
}

func newLowpassSection(cutoffHz, sampleRate, q float64) *biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := (1 - cosW0) / 2
	b1 := 1 - cosW0
	b2 := (1 - cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func newHighpassSection(cutoffHz, sampleRate, q float64) *biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func newBandpassSection(centerHz, bandwidthHz, sampleRate float64) *biquad {
	w0 := 2 * math.Pi * centerHz / sampleRate
	q := centerHz / bandwidthHz
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) *biquad {
	return &biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// newButterworthLowpass builds a 4th-order Butterworth-approximating
// lowpass as a cascade of two RBJ biquad sections.
func newButterworthLowpass(cutoffHz, sampleRate float64) []*biquad {
	return []*biquad{
		newLowpassSection(cutoffHz, sampleRate, butterworthQs[0]),
		newLowpassSection(cutoffHz, sampleRate, butterworthQs[1]),
	}
}

// newButterworthHighpass builds a 4th-order Butterworth-approximating
// highpass as a cascade of two RBJ biquad sections.
func newButterworthHighpass(cutoffHz, sampleRate float64) []*biquad {
	return []*biquad{
		newHighpassSection(cutoffHz, sampleRate, butterworthQs[0]),
		newHighpassSection(cutoffHz, sampleRate, butterworthQs[1]),
	}
}

// newButterworthBandpass builds a 4th-order-equivalent bandpass between
// lowHz and highHz as a cascade of two RBJ bandpass sections sharing the
// same center frequency and bandwidth.
func newButterworthBandpass(lowHz, highHz, sampleRate float64) []*biquad {
	center := math.Sqrt(lowHz * highHz)
	bandwidth := highHz - lowHz
	return []*biquad{
		newBandpassSection(center, bandwidth, sampleRate),
		newBandpassSection(center, bandwidth, sampleRate),
	}
}

// chain applies a cascade of biquad sections to a single sample, in
// order, carrying each section's memory across calls.
func chain(sections []*biquad, x float64) float64 {
	y := x
	for _, s := range sections {
		y = s.process(y)
	}
	return y
}
