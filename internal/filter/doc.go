// Package filter provides the low-pass filters used to condition noisy
// control signals: cascaded one-pole stages (Pt1, Pt2, Pt3) and a
// second-order biquad section.
//
// Filters are plain values with no internal locking. Each instance belongs
// to exactly one signal of one axis; sharing an instance between signals
// mixes their delay lines. Apply performs no allocation and has no error
// path; feeding NaN or Inf is a caller bug and is propagated unchanged.
package filter
