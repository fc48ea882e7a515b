package scheduler

import (
	"fmt"
	"math"
)

// TrackerConfig bounds and steps an adaptive window, in microseconds.
type TrackerConfig struct {
	MinUs       float32 `json:"min_us"`
	MaxUs       float32 `json:"max_us"`
	DeltaUpUs   float32 `json:"delta_up_us"`
	DeltaDownUs float32 `json:"delta_down_us"`
}

func (c TrackerConfig) validate(name string) error {
	for field, v := range map[string]float32{
		"min": c.MinUs, "max": c.MaxUs, "delta up": c.DeltaUpUs, "delta down": c.DeltaDownUs,
	} {
		if v < 0 || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: %s %s must be finite and non-negative, got %v", ErrInvalidConfig, name, field, v)
		}
	}
	if c.MaxUs < c.MinUs {
		return fmt.Errorf("%w: %s max %vus below min %vus", ErrInvalidConfig, name, c.MaxUs, c.MinUs)
	}
	return nil
}

// Tracker is an adaptive timing window. A sample above the current window
// widens it quickly; anything else narrows it slowly. The window never
// leaves [min, max].
type Tracker struct {
	current   uint32
	min       uint32
	max       uint32
	deltaUp   uint32
	deltaDown uint32

	samples     uint64
	observedMin uint32
	observedMax uint32
}

// TrackerStats is a snapshot of a Tracker.
type TrackerStats struct {
	CurrentCycles     uint32
	MinCycles         uint32
	MaxCycles         uint32
	Samples           uint64
	ObservedMinCycles uint32
	ObservedMaxCycles uint32
}

func usToCycles(us float32, clockRate uint32) uint32 {
	return uint32(float64(us)*float64(clockRate)/1e6 + 0.5)
}

// newTracker converts cfg to cycles. Both steps are at least one cycle so
// the window can always move.
func newTracker(cfg TrackerConfig, clockRate uint32) Tracker {
	t := Tracker{
		min:       usToCycles(cfg.MinUs, clockRate),
		max:       usToCycles(cfg.MaxUs, clockRate),
		deltaUp:   max(usToCycles(cfg.DeltaUpUs, clockRate), 1),
		deltaDown: max(usToCycles(cfg.DeltaDownUs, clockRate), 1),
	}
	t.current = t.min
	return t
}

// Observe feeds one sample in cycles.
func (t *Tracker) Observe(sample uint32) {
	if t.samples == 0 {
		t.observedMin, t.observedMax = sample, sample
	} else {
		t.observedMin = min(t.observedMin, sample)
		t.observedMax = max(t.observedMax, sample)
	}
	t.samples++

	if sample > t.current {
		t.current = min(t.current+t.deltaUp, t.max)
		return
	}
	if t.current-t.min > t.deltaDown {
		t.current -= t.deltaDown
	} else {
		t.current = t.min
	}
}

// Current returns the window in cycles.
func (t *Tracker) Current() uint32 { return t.current }

// Stats returns a snapshot of the tracker.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		CurrentCycles:     t.current,
		MinCycles:         t.min,
		MaxCycles:         t.max,
		Samples:           t.samples,
		ObservedMinCycles: t.observedMin,
		ObservedMaxCycles: t.observedMax,
	}
}
