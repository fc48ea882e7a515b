package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrCutoffAboveNyquist is returned when a biquad centre or cutoff frequency
// is not below half the sample rate.
var ErrCutoffAboveNyquist = errors.New("filter: cutoff must be below the Nyquist frequency")

// ButterworthQ is the quality factor of a maximally flat second-order section.
const ButterworthQ = 0.7071067811865476

type biquadResponse int

const (
	responseLowpass biquadResponse = iota
	responseNotch
)

// Biquad is a second-order IIR section in Direct Form 1. The weight blends
// the filtered and raw signal: weight 1 is fully filtered, weight 0 returns
// the input unchanged.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32

	weight   float32
	q        float32
	dt       float32
	response biquadResponse
}

// NewBiquadLowpass builds a low-pass section. q is usually ButterworthQ.
func NewBiquadLowpass(cutoffHz, dt, q, weight float32) (Biquad, error) {
	return newBiquad(responseLowpass, cutoffHz, dt, q, weight)
}

// NewBiquadNotch builds a notch centred on centreHz.
func NewBiquadNotch(centreHz, dt, q float32) (Biquad, error) {
	return newBiquad(responseNotch, centreHz, dt, q, 1)
}

func newBiquad(response biquadResponse, hz, dt, q, weight float32) (Biquad, error) {
	if err := checkInterval(dt); err != nil {
		return Biquad{}, err
	}
	nyquist := 0.5 / dt
	if hz <= 0 || hz >= nyquist {
		return Biquad{}, fmt.Errorf("%w: %vHz at %vHz sampling", ErrCutoffAboveNyquist, hz, 1/dt)
	}
	if q <= 0 {
		return Biquad{}, fmt.Errorf("filter: biquad q must be positive, got %v", q)
	}
	if weight < 0 || weight > 1 {
		return Biquad{}, fmt.Errorf("filter: biquad weight must be in [0,1], got %v", weight)
	}
	f := Biquad{weight: weight, q: q, dt: dt, response: response}
	f.setCoefficients(hz)
	return f, nil
}

func (f *Biquad) setCoefficients(hz float32) {
	omega := 2 * math.Pi * float64(hz) * float64(f.dt)
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * float64(f.q))

	var b0, b1, b2 float64
	switch f.response {
	case responseNotch:
		b0 = 1
		b1 = -2 * cs
		b2 = 1
	default:
		b1 = 1 - cs
		b0 = b1 / 2
		b2 = b0
	}
	a0 := 1 + alpha
	a1 := -2 * cs
	a2 := 1 - alpha

	f.b0 = float32(b0 / a0)
	f.b1 = float32(b1 / a0)
	f.b2 = float32(b2 / a0)
	f.a1 = float32(a1 / a0)
	f.a2 = float32(a2 / a0)
}

// Apply advances the section by one sample.
func (f *Biquad) Apply(input float32) float32 {
	result := f.b0*input + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2

	f.x2 = f.x1
	f.x1 = input
	f.y2 = f.y1
	f.y1 = result

	if f.weight == 1 {
		return result
	}
	return f.weight*result + (1-f.weight)*input
}

// SetCutoff recomputes the coefficients for a new cutoff or centre frequency
// without touching the delay line. Frequencies at or above Nyquist are pulled
// just below it; non-positive frequencies are ignored.
func (f *Biquad) SetCutoff(hz float32) {
	if hz <= 0 {
		return
	}
	if limit := 0.49 / f.dt; hz > limit {
		hz = limit
	}
	f.setCoefficients(hz)
}

// SetWeight changes the filtered/raw blend, clamped to [0,1].
func (f *Biquad) SetWeight(weight float32) {
	f.weight = min(max(weight, 0), 1)
}

// Reset sets the delay line as if value had been applied forever, which for a
// unity-gain low-pass means every tap holds value.
func (f *Biquad) Reset(value float32) {
	f.x1, f.x2 = value, value
	f.y1, f.y2 = value, value
}

// Coefficients returns b0, b1, b2, a1, a2 normalised by a0.
func (f *Biquad) Coefficients() (b0, b1, b2, a1, a2 float32) {
	return f.b0, f.b1, f.b2, f.a1, f.a2
}
