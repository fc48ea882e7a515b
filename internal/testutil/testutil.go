// Package testutil provides shared test utilities and signal fixtures.
//
// The generators return fresh slices so callers may feed them through
// stateful filters and controllers without aliasing.
package testutil

import (
	"math"
	"math/rand/v2"
)

// Step returns n samples of value.
func Step(n int, value float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Sine returns n samples of amp*sin(2*pi*freqHz*t) sampled every dt seconds.
func Sine(n int, freqHz, dt, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freqHz*float64(i)*dt))
	}
	return out
}

// Noise returns n uniformly distributed samples in [-amp, amp]. The same
// seed always yields the same sequence.
func Noise(seed uint64, n int, amp float64) []float32 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32((r.Float64()*2 - 1) * amp)
	}
	return out
}

// Add returns the element-wise sum of a and b, truncated to the shorter.
func Add(a, b []float32) []float32 {
	n := min(len(a), len(b))
	out := make([]float32, n)
	for i := range n {
		out[i] = a[i] + b[i]
	}
	return out
}

// RMS returns the root mean square of xs, or 0 for an empty slice.
func RMS(xs []float32) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
