package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSampleInterval is returned when a filter is built with a
// non-positive or non-finite sample interval.
var ErrInvalidSampleInterval = errors.New("filter: sample interval must be positive and finite")

// Cutoff corrections that place the -3dB point of an n-stage cascade at the
// requested frequency: 1/sqrt(2^(1/n) - 1).
const (
	pt2CutoffCorrection = 1.553773974
	pt3CutoffCorrection = 1.961459177
)

// Pt1Gain returns the one-pole coefficient for the given cutoff frequency and
// sample interval in seconds. A cutoff of zero or less disables filtering
// (k = 1).
func Pt1Gain(cutoffHz, dt float32) float32 {
	if cutoffHz <= 0 {
		return 1
	}
	rc := 1 / (2 * math.Pi * float64(cutoffHz))
	d := float64(dt)
	return float32(d / (rc + d))
}

// Pt2Gain returns the per-stage coefficient of a two-stage cascade whose
// overall cutoff is cutoffHz.
func Pt2Gain(cutoffHz, dt float32) float32 {
	return Pt1Gain(cutoffHz*pt2CutoffCorrection, dt)
}

// Pt3Gain returns the per-stage coefficient of a three-stage cascade whose
// overall cutoff is cutoffHz.
func Pt3Gain(cutoffHz, dt float32) float32 {
	return Pt1Gain(cutoffHz*pt3CutoffCorrection, dt)
}

func checkInterval(dt float32) error {
	d := float64(dt)
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleInterval, dt)
	}
	return nil
}

// Pt1 is a single one-pole low-pass stage.
type Pt1 struct {
	state float32
	k     float32
	dt    float32
}

// NewPt1 builds a one-pole filter for the given cutoff and sample interval.
func NewPt1(cutoffHz, dt float32) (Pt1, error) {
	if err := checkInterval(dt); err != nil {
		return Pt1{}, err
	}
	return Pt1{k: Pt1Gain(cutoffHz, dt), dt: dt}, nil
}

// Apply advances the filter by one sample and returns the filtered value.
func (f *Pt1) Apply(input float32) float32 {
	f.state += f.k * (input - f.state)
	return f.state
}

// SetCutoff recomputes the coefficient. The delay line is kept.
func (f *Pt1) SetCutoff(cutoffHz float32) {
	f.k = Pt1Gain(cutoffHz, f.dt)
}

// Reset sets the delay line to value.
func (f *Pt1) Reset(value float32) {
	f.state = value
}

// K returns the current coefficient.
func (f *Pt1) K() float32 { return f.k }

// Pt2 is two Pt1 stages sharing one coefficient.
type Pt2 struct {
	state  float32
	state1 float32
	k      float32
	dt     float32
}

// NewPt2 builds a two-stage filter with the given overall cutoff.
func NewPt2(cutoffHz, dt float32) (Pt2, error) {
	if err := checkInterval(dt); err != nil {
		return Pt2{}, err
	}
	return Pt2{k: Pt2Gain(cutoffHz, dt), dt: dt}, nil
}

// Apply advances both stages and returns the output of the second.
func (f *Pt2) Apply(input float32) float32 {
	f.state1 += f.k * (input - f.state1)
	f.state += f.k * (f.state1 - f.state)
	return f.state
}

// SetCutoff recomputes the shared coefficient. The delay line is kept.
func (f *Pt2) SetCutoff(cutoffHz float32) {
	f.k = Pt2Gain(cutoffHz, f.dt)
}

// Reset sets every stage to value.
func (f *Pt2) Reset(value float32) {
	f.state = value
	f.state1 = value
}

// K returns the current per-stage coefficient.
func (f *Pt2) K() float32 { return f.k }

// Pt3 is three Pt1 stages sharing one coefficient.
type Pt3 struct {
	state  float32
	state1 float32
	state2 float32
	k      float32
	dt     float32
}

// NewPt3 builds a three-stage filter with the given overall cutoff.
func NewPt3(cutoffHz, dt float32) (Pt3, error) {
	if err := checkInterval(dt); err != nil {
		return Pt3{}, err
	}
	return Pt3{k: Pt3Gain(cutoffHz, dt), dt: dt}, nil
}

// Apply advances all three stages and returns the output of the last.
func (f *Pt3) Apply(input float32) float32 {
	f.state1 += f.k * (input - f.state1)
	f.state2 += f.k * (f.state1 - f.state2)
	f.state += f.k * (f.state2 - f.state)
	return f.state
}

// SetCutoff recomputes the shared coefficient. The delay line is kept.
func (f *Pt3) SetCutoff(cutoffHz float32) {
	f.k = Pt3Gain(cutoffHz, f.dt)
}

// Reset sets every stage to value.
func (f *Pt3) Reset(value float32) {
	f.state = value
	f.state1 = value
	f.state2 = value
}

// K returns the current per-stage coefficient.
func (f *Pt3) K() float32 { return f.k }
