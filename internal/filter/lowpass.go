package filter

import (
	"fmt"
	"strings"
)

// Kind selects the implementation behind a Lowpass.
type Kind int

const (
	KindNone Kind = iota
	KindPt1
	KindPt2
	KindPt3
	KindBiquad
)

var kindNames = map[Kind]string{
	KindNone:   "none",
	KindPt1:    "pt1",
	KindPt2:    "pt2",
	KindPt3:    "pt3",
	KindBiquad: "biquad",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configuration name ("pt1", "biquad", ...) to a Kind.
// The empty string selects KindNone.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return KindNone, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown filter kind %q: expected none, pt1, pt2, pt3 or biquad", s)
}

// Lowpass is a low-pass filter whose implementation is chosen at runtime.
// Only the member matching kind is used.
type Lowpass struct {
	kind   Kind
	pt1    Pt1
	pt2    Pt2
	pt3    Pt3
	biquad Biquad
}

// NewLowpass builds a low-pass of the given kind. KindNone, or a cutoff of
// zero, yields a pass-through filter.
func NewLowpass(kind Kind, cutoffHz, dt float32) (Lowpass, error) {
	if err := checkInterval(dt); err != nil {
		return Lowpass{}, err
	}
	if cutoffHz <= 0 {
		kind = KindNone
	}

	l := Lowpass{kind: kind}
	var err error
	switch kind {
	case KindNone:
	case KindPt1:
		l.pt1, err = NewPt1(cutoffHz, dt)
	case KindPt2:
		l.pt2, err = NewPt2(cutoffHz, dt)
	case KindPt3:
		l.pt3, err = NewPt3(cutoffHz, dt)
	case KindBiquad:
		l.biquad, err = NewBiquadLowpass(cutoffHz, dt, ButterworthQ, 1)
	default:
		return Lowpass{}, fmt.Errorf("unsupported filter kind %v", kind)
	}
	if err != nil {
		return Lowpass{}, fmt.Errorf("build %v lowpass: %w", kind, err)
	}
	return l, nil
}

// Kind reports the active implementation.
func (l *Lowpass) Kind() Kind { return l.kind }

// Apply filters one sample.
func (l *Lowpass) Apply(input float32) float32 {
	switch l.kind {
	case KindPt1:
		return l.pt1.Apply(input)
	case KindPt2:
		return l.pt2.Apply(input)
	case KindPt3:
		return l.pt3.Apply(input)
	case KindBiquad:
		return l.biquad.Apply(input)
	default:
		return input
	}
}

// SetCutoff retunes the active filter, keeping its delay line.
func (l *Lowpass) SetCutoff(cutoffHz float32) {
	switch l.kind {
	case KindPt1:
		l.pt1.SetCutoff(cutoffHz)
	case KindPt2:
		l.pt2.SetCutoff(cutoffHz)
	case KindPt3:
		l.pt3.SetCutoff(cutoffHz)
	case KindBiquad:
		l.biquad.SetCutoff(cutoffHz)
	}
}

// Reset primes the delay line with value.
func (l *Lowpass) Reset(value float32) {
	switch l.kind {
	case KindPt1:
		l.pt1.Reset(value)
	case KindPt2:
		l.pt2.Reset(value)
	case KindPt3:
		l.pt3.Reset(value)
	case KindBiquad:
		l.biquad.Reset(value)
	}
}
