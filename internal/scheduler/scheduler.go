// Package scheduler keeps a fixed-phase control loop on a free-running
// cycle counter and decides when lower-priority work may run without
// delaying the next control tick.
//
// Deadlines advance by exactly one period per executed tick, so lateness on
// one tick never shifts the phase of the next. All counter comparisons wrap.
package scheduler

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/rotorcore/internal/units"
)

var (
	// ErrInvalidPeriod is returned when the clock rate and loop rate do not
	// give a positive period in cycles.
	ErrInvalidPeriod = errors.New("scheduler: period must be at least one cycle")
	// ErrInvalidConfig wraps every other configuration failure.
	ErrInvalidConfig = errors.New("scheduler: invalid config")
)

// Config describes the loop timing. Tracker and margin values are in
// microseconds and are converted to cycles at ClockRate.
type Config struct {
	// ClockRate is the cycle counter frequency in Hz.
	ClockRate uint32
	// LoopRateHz is the core task rate.
	LoopRateHz float64

	// LoopStart tracks how late ticks start; the dispatcher wakes that much
	// before each deadline.
	LoopStart TrackerConfig
	// TaskGuard tracks guarded task duration.
	TaskGuard TrackerConfig
	// GuardMarginUs is added to the task guard when deciding if a guarded
	// task fits before the next deadline.
	GuardMarginUs float32
}

// DefaultConfig returns a 1kHz loop on a 168MHz counter.
func DefaultConfig() Config {
	return Config{
		ClockRate:     168_000_000,
		LoopRateHz:    1000,
		LoopStart:     TrackerConfig{MinUs: 1, MaxUs: 12, DeltaUpUs: 1, DeltaDownUs: 0.05},
		TaskGuard:     TrackerConfig{MinUs: 3, MaxUs: 100, DeltaUpUs: 1, DeltaDownUs: 0.01},
		GuardMarginUs: 2,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.ClockRate == 0 || c.LoopRateHz <= 0 || math.IsNaN(c.LoopRateHz) || math.IsInf(c.LoopRateHz, 0) {
		return fmt.Errorf("%w: clock %dHz, loop %vHz", ErrInvalidPeriod, c.ClockRate, c.LoopRateHz)
	}
	period := units.PeriodCycles(c.ClockRate, c.LoopRateHz)
	if period == 0 || period > math.MaxInt32 {
		return fmt.Errorf("%w: clock %dHz, loop %vHz gives %d cycles", ErrInvalidPeriod, c.ClockRate, c.LoopRateHz, period)
	}
	if err := c.LoopStart.validate("loop start"); err != nil {
		return err
	}
	if err := c.TaskGuard.validate("task guard"); err != nil {
		return err
	}
	if c.GuardMarginUs < 0 {
		return fmt.Errorf("%w: guard margin must be non-negative, got %v", ErrInvalidConfig, c.GuardMarginUs)
	}
	return nil
}

// Scheduler holds the deadline and the two adaptive windows. It is not safe
// for concurrent use.
type Scheduler struct {
	clockRate           uint32
	desiredPeriodCycles uint32
	guardMarginCycles   uint32

	loopStart Tracker
	taskGuard Tracker

	lastTargetCycles uint32
	nextTimingCycles uint32
	started          bool

	ticks            uint64
	skipped          uint64
	guardedRuns      uint64
	guardedDeferrals uint64
}

// Stats is a snapshot of scheduler bookkeeping.
type Stats struct {
	PeriodCycles     uint32
	LastTargetCycles uint32
	NextTimingCycles uint32
	Ticks            uint64
	SkippedTicks     uint64
	GuardedRuns      uint64
	GuardedDeferrals uint64
	LoopStart        TrackerStats
	TaskGuard        TrackerStats
}

// New validates cfg and returns a scheduler that has not started.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		clockRate:           cfg.ClockRate,
		desiredPeriodCycles: units.PeriodCycles(cfg.ClockRate, cfg.LoopRateHz),
		guardMarginCycles:   usToCycles(cfg.GuardMarginUs, cfg.ClockRate),
		loopStart:           newTracker(cfg.LoopStart, cfg.ClockRate),
		taskGuard:           newTracker(cfg.TaskGuard, cfg.ClockRate),
	}, nil
}

// Start makes now the first deadline.
func (s *Scheduler) Start(now uint32) {
	s.nextTimingCycles = now
	s.lastTargetCycles = now
	s.started = true
}

// ShouldRun reports whether the core task is due at now. When it is, the
// lateness is recorded, the deadline moves one period ahead and true is
// returned. A tick more than a full period late skips the missed deadlines
// so the next one is in the future, keeping the original phase.
func (s *Scheduler) ShouldRun(now uint32) bool {
	if !s.started {
		s.Start(now)
	}
	remaining := Compare(s.nextTimingCycles, now)
	if remaining > 0 {
		return false
	}

	late := uint32(-int64(remaining))
	if late >= s.desiredPeriodCycles {
		missed := late / s.desiredPeriodCycles
		s.nextTimingCycles += missed * s.desiredPeriodCycles
		s.skipped += uint64(missed)
		late -= missed * s.desiredPeriodCycles
	}
	s.loopStart.Observe(late)

	s.lastTargetCycles = s.nextTimingCycles
	s.nextTimingCycles += s.desiredPeriodCycles
	s.ticks++
	return true
}

// Remaining returns the signed cycles from now to the next deadline.
func (s *Scheduler) Remaining(now uint32) int32 {
	return Compare(s.nextTimingCycles, now)
}

// GuardedTaskMayRun reports whether a guarded task started at now would
// finish, by the task guard estimate, before the next deadline. A false
// result is counted as a deferral.
func (s *Scheduler) GuardedTaskMayRun(now uint32) bool {
	budget := int64(s.taskGuard.Current()) + int64(s.guardMarginCycles)
	if int64(s.Remaining(now)) > budget {
		return true
	}
	s.guardedDeferrals++
	return false
}

// GuardedTaskDone records the duration of a guarded task run.
func (s *Scheduler) GuardedTaskDone(start, end uint32) {
	s.taskGuard.Observe(Elapsed(start, end))
	s.guardedRuns++
}

// WakeCycles returns the counter value at which the dispatcher should wake
// to be ready for the next deadline.
func (s *Scheduler) WakeCycles() uint32 {
	return s.nextTimingCycles - s.loopStart.Current()
}

// PeriodCycles returns the fixed loop period in cycles.
func (s *Scheduler) PeriodCycles() uint32 { return s.desiredPeriodCycles }

// ClockRate returns the counter frequency in Hz.
func (s *Scheduler) ClockRate() uint32 { return s.clockRate }

// LastTargetCycles returns the deadline of the most recent tick.
func (s *Scheduler) LastTargetCycles() uint32 { return s.lastTargetCycles }

// NextTimingCycles returns the next deadline.
func (s *Scheduler) NextTimingCycles() uint32 { return s.nextTimingCycles }

// LoopStartCycles returns the current loop-start window.
func (s *Scheduler) LoopStartCycles() uint32 { return s.loopStart.Current() }

// TaskGuardCycles returns the current task guard window.
func (s *Scheduler) TaskGuardCycles() uint32 { return s.taskGuard.Current() }

// Stats returns a snapshot of the scheduler.
func (s *Scheduler) Stats() Stats {
	return Stats{
		PeriodCycles:     s.desiredPeriodCycles,
		LastTargetCycles: s.lastTargetCycles,
		NextTimingCycles: s.nextTimingCycles,
		Ticks:            s.ticks,
		SkippedTicks:     s.skipped,
		GuardedRuns:      s.guardedRuns,
		GuardedDeferrals: s.guardedDeferrals,
		LoopStart:        s.loopStart.Stats(),
		TaskGuard:        s.taskGuard.Stats(),
	}
}
