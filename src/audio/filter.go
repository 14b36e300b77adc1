package audio

import (
	"math"
)

// ----- Output Filter ----- //

// The engine's fixed output stage: an RBJ biquad lowpass that every voice
// chain feeds into before reaching the device.
type filter struct {
	a    []float64 // feedforward
	b    []float64 // feedback
	past []float64
}

func newOutputFilter(freq float64, q float64) *filter {
	a, b := makeBiquadLowpassH(freq/sampleRate, q)
	n := len(a) - 1
	if len(b) > n {
		n = len(b)
	}
	return &filter{a: a, b: b, past: make([]float64, n)}
}

func (f *filter) step(in float64) float64 {
	// apply b
	for j := 0; j < len(f.b); j++ {
		in -= f.past[j] * f.b[j]
	}
	// apply a
	out := in * f.a[0]
	for j := 1; j < len(f.a); j++ {
		out += f.past[j-1] * f.a[j]
	}
	for j := len(f.past) - 2; j >= 0; j-- {
		f.past[j+1] = f.past[j]
	}
	if len(f.past) > 0 {
		f.past[0] = in
	}
	return out
}

func makeBiquadLowpassH(fc float64, q float64) ([]float64, []float64) {
	// from RBJ's cookbook
	w0 := 2 * math.Pi * fc
	alpha := math.Sin(w0) / (2 * q)
	b0 := (1 - math.Cos(w0)) / 2
	b1 := (1 - math.Cos(w0))
	b2 := (1 - math.Cos(w0)) / 2
	a0 := 1 + alpha
	a1 := -2 * math.Cos(w0)
	a2 := 1 - alpha
	return []float64{b0 / a0, b1 / a0, b2 / a0}, []float64{a1 / a0, a2 / a0}
}
