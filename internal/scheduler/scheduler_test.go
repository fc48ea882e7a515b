package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotorcore/internal/testutil"
)

// khzConfig is a 1kHz loop on a 1MHz counter, so one cycle is one
// microsecond and the period is 1000 cycles.
func khzConfig() Config {
	cfg := DefaultConfig()
	cfg.ClockRate = 1_000_000
	cfg.LoopRateHz = 1000
	return cfg
}

func newScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestCompareWraps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b uint32
		want int32
	}{
		{10, 5, 5},
		{5, 10, -5},
		{3, math.MaxUint32 - 2, 6},
		{math.MaxUint32 - 2, 3, -6},
		{7, 7, 0},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Compare(tt.a, tt.b), "Compare(%d, %d)", tt.a, tt.b)
	}
	assert.Equal(t, uint32(6), Elapsed(math.MaxUint32-2, 3))
}

func TestDeadlinesKeepFixedPhase(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	const period = 1000
	require.Equal(t, uint32(period), s.PeriodCycles())

	s.Start(0)
	jitter := testutil.Noise(7, 500, 1)
	for i, j := range jitter {
		deadline := uint32(i * period)
		late := uint32(math.Abs(float64(j)) * 400)

		require.Falsef(t, i > 0 && s.ShouldRun(deadline-1), "tick %d ran early", i)
		require.Truef(t, s.ShouldRun(deadline+late), "tick %d did not run", i)
		require.Equalf(t, deadline, s.LastTargetCycles(), "tick %d drifted", i)
		require.Equal(t, deadline+period, s.NextTimingCycles())
		require.False(t, s.ShouldRun(deadline+late), "a tick runs once")
	}
	st := s.Stats()
	assert.Equal(t, uint64(len(jitter)), st.Ticks)
	assert.Zero(t, st.SkippedTicks)
}

func TestOverrunResynchronises(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	s.Start(0)
	require.True(t, s.ShouldRun(0))

	require.True(t, s.ShouldRun(3500))
	assert.Equal(t, uint32(3000), s.LastTargetCycles())
	assert.Equal(t, uint32(4000), s.NextTimingCycles())
	assert.Equal(t, uint64(2), s.Stats().SkippedTicks)
	assert.Positive(t, s.Remaining(3500), "next deadline must be in the future")

	assert.False(t, s.ShouldRun(3999))
	assert.True(t, s.ShouldRun(4000))
	assert.Equal(t, uint32(4000), s.LastTargetCycles())
}

func TestOnTimeTicksDoNotWidenLoopStart(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ClockRate = 8_000_000
	cfg.LoopRateHz = 1000
	s := newScheduler(t, cfg)
	require.Equal(t, uint32(8000), s.PeriodCycles())

	initial := s.LoopStartCycles()
	require.Equal(t, uint32(8), initial, "1us at 8MHz")

	s.Start(0)
	for i := 0; i < 100; i++ {
		now := uint32(i) * 8000
		require.True(t, s.ShouldRun(now))
		require.Equalf(t, initial, s.LoopStartCycles(), "window widened on tick %d", i)
		require.Equal(t, now+8000-initial, s.WakeCycles())
	}
	st := s.Stats().LoopStart
	assert.Equal(t, uint64(100), st.Samples)
	assert.Zero(t, st.ObservedMaxCycles)
}

func TestLateTicksWidenLoopStart(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	s.Start(0)
	require.True(t, s.ShouldRun(0))
	before := s.LoopStartCycles()

	require.True(t, s.ShouldRun(1005))
	assert.Greater(t, s.LoopStartCycles(), before)
	assert.Less(t, s.WakeCycles(), s.NextTimingCycles())
}

func TestDeadlinesAcrossCounterWrap(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	start := uint32(math.MaxUint32 - 2500)
	s.Start(start)

	for i := uint32(0); i < 6; i++ {
		deadline := start + i*1000
		require.Falsef(t, i > 0 && s.ShouldRun(deadline-1), "tick %d ran early", i)
		require.Truef(t, s.ShouldRun(deadline+3), "tick %d", i)
		require.Equal(t, deadline, s.LastTargetCycles())
	}
	assert.Zero(t, s.Stats().SkippedTicks)
	assert.Less(t, s.LastTargetCycles(), start, "deadlines wrapped past zero")
}

func TestGuardedTaskNeedsGuardAndMargin(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	s.Start(0)
	require.True(t, s.ShouldRun(0))

	// task guard 3 cycles + margin 2 cycles before the deadline at 1000.
	require.Equal(t, uint32(3), s.TaskGuardCycles())
	assert.True(t, s.GuardedTaskMayRun(994))
	assert.False(t, s.GuardedTaskMayRun(995))
	assert.False(t, s.GuardedTaskMayRun(1200), "past the deadline nothing fits")
	assert.Equal(t, uint64(2), s.Stats().GuardedDeferrals)

	s.GuardedTaskDone(100, 150)
	assert.Equal(t, uint32(4), s.TaskGuardCycles())
	assert.False(t, s.GuardedTaskMayRun(994), "a slow task widens the guard")
	assert.Equal(t, uint64(1), s.Stats().GuardedRuns)
}

func TestTaskGuardLearnsSlowTasks(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	s.Start(0)
	require.True(t, s.ShouldRun(0))

	for i := 0; i < 1000; i++ {
		s.GuardedTaskDone(0, 40)
	}
	assert.GreaterOrEqual(t, s.TaskGuardCycles(), uint32(39))
	assert.Equal(t, uint32(40), s.Stats().TaskGuard.ObservedMaxCycles)
	assert.False(t, s.GuardedTaskMayRun(990), "a 40us task does not fit in 10us")
	assert.True(t, s.GuardedTaskMayRun(950))
}

func TestTrackerWidensFastNarrowsSlow(t *testing.T) {
	t.Parallel()

	tr := newTracker(TrackerConfig{MinUs: 1, MaxUs: 12, DeltaUpUs: 1, DeltaDownUs: 0.05}, 20_000_000)
	require.Equal(t, uint32(20), tr.Current())

	tr.Observe(1000)
	assert.Equal(t, uint32(40), tr.Current())
	for i := 0; i < 20; i++ {
		tr.Observe(1000)
	}
	assert.Equal(t, uint32(240), tr.Current(), "capped at max")

	tr.Observe(0)
	assert.Equal(t, uint32(239), tr.Current())

	steps := 1
	for tr.Current() > 20 {
		tr.Observe(0)
		steps++
	}
	assert.Equal(t, 220, steps, "narrowing takes one cycle per sample")

	tr.Observe(0)
	assert.Equal(t, uint32(20), tr.Current(), "floored at min")

	st := tr.Stats()
	assert.Equal(t, uint32(0), st.ObservedMinCycles)
	assert.Equal(t, uint32(1000), st.ObservedMaxCycles)
}

func TestTrackerStepsNeverRoundToZero(t *testing.T) {
	t.Parallel()

	tr := newTracker(TrackerConfig{MinUs: 3, MaxUs: 6, DeltaUpUs: 0.001, DeltaDownUs: 0.001}, 1_000_000)
	tr.Observe(100)
	assert.Equal(t, uint32(4), tr.Current())
	tr.Observe(0)
	assert.Equal(t, uint32(3), tr.Current())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero clock", func(c *Config) { c.ClockRate = 0 }, ErrInvalidPeriod},
		{"zero loop rate", func(c *Config) { c.LoopRateHz = 0 }, ErrInvalidPeriod},
		{"loop faster than clock", func(c *Config) { c.ClockRate = 1000; c.LoopRateHz = 5000 }, ErrInvalidPeriod},
		{"nan loop rate", func(c *Config) { c.LoopRateHz = math.NaN() }, ErrInvalidPeriod},
		{"inverted loop start", func(c *Config) { c.LoopStart.MaxUs = 0.5 }, ErrInvalidConfig},
		{"negative guard delta", func(c *Config) { c.TaskGuard.DeltaUpUs = -1 }, ErrInvalidConfig},
		{"negative margin", func(c *Config) { c.GuardMarginUs = -2 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestShouldRunStartsImplicitly(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, khzConfig())
	assert.True(t, s.ShouldRun(12345))
	assert.Equal(t, uint32(12345), s.LastTargetCycles())
	assert.Equal(t, uint32(13345), s.NextTimingCycles())
}
