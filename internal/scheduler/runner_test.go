package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotorcore/internal/monitoring"
	"github.com/banshee-data/rotorcore/internal/timeutil"
)

func newRunner(t *testing.T, core CoreFunc) (*Runner, *timeutil.MockCounter) {
	t.Helper()
	counter := timeutil.NewMockCounter(1_000_000, 0)
	r := NewRunner(newScheduler(t, khzConfig()), counter, core)
	return r, counter
}

func TestRunnerPassesElapsedTimeToCore(t *testing.T) {
	t.Parallel()

	var dts []uint32
	r, counter := newRunner(t, func(dtUs uint32) { dts = append(dts, dtUs) })
	r.Scheduler().Start(0)

	for _, now := range []uint32{0, 500, 1000, 2300, 2999, 3000} {
		counter.Set(now)
		r.Step()
	}
	assert.Equal(t, []uint32{0, 1000, 1300, 700}, dts)
}

func TestRunnerDefersGuardedTasksUntilTheyFit(t *testing.T) {
	t.Parallel()

	var counter *timeutil.MockCounter
	coreCost := uint32(996)
	var order []string
	r, counter := newRunner(t, func(uint32) { counter.Advance(coreCost) })
	for _, name := range []string{"telemetry", "blackbox"} {
		require.NoError(t, r.AddTask(Task{
			Name:     name,
			PeriodUs: 5000,
			Run: func(uint32) {
				order = append(order, name)
				counter.Advance(50)
			},
		}))
	}
	r.Scheduler().Start(0)

	// The core leaves 4 cycles; guard plus margin needs more than 5.
	res := r.Step()
	assert.Equal(t, StepResult{CoreRan: true, Deferred: 1}, res)
	assert.Empty(t, order)

	coreCost = 10
	counter.Set(1000)
	res = r.Step()
	assert.Equal(t, StepResult{CoreRan: true, TasksRun: 2}, res)
	assert.Equal(t, []string{"telemetry", "blackbox"}, order)

	want := []TaskStats{
		{Name: "telemetry", Runs: 1, Deferrals: 1},
		{Name: "blackbox", Runs: 1, Deferrals: 0},
	}
	if diff := cmp.Diff(want, r.TaskStats()); diff != "" {
		t.Errorf("task stats mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(2), r.Scheduler().Stats().GuardedRuns)
	assert.Greater(t, r.Scheduler().TaskGuardCycles(), uint32(3), "50-cycle runs widen the guard")
}

func TestRunnerRunsTasksAtTheirPeriod(t *testing.T) {
	t.Parallel()

	runs := 0
	r, counter := newRunner(t, func(uint32) {})
	require.NoError(t, r.AddTask(Task{Name: "slow", PeriodUs: 3000, Run: func(uint32) { runs++ }}))
	r.Scheduler().Start(0)

	for now := uint32(0); now < 10_000; now += 100 {
		counter.Set(now)
		r.Step()
	}
	assert.Equal(t, 4, runs, "due at 0, 3000, 6000 and 9000")
	assert.Equal(t, uint64(10), r.Scheduler().Stats().Ticks)
}

func TestAddTaskValidates(t *testing.T) {
	t.Parallel()

	r, _ := newRunner(t, func(uint32) {})
	assert.ErrorIs(t, r.AddTask(Task{Name: "nil", PeriodUs: 10}), ErrInvalidConfig)
	assert.ErrorIs(t, r.AddTask(Task{Name: "zero", Run: func(uint32) {}}), ErrInvalidConfig)
}

func TestAddTaskRejectsPeriodsPastHalfTheCounter(t *testing.T) {
	t.Parallel()

	counter := timeutil.NewMockCounter(168_000_000, 0)
	r := NewRunner(newScheduler(t, DefaultConfig()), counter, func(uint32) {})

	// 15s at 168MHz is 2.52e9 cycles, beyond what a signed compare can order.
	err := r.AddTask(Task{Name: "log rotate", PeriodUs: 15_000_000, Run: func(uint32) {}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	runs := 0
	require.NoError(t, r.AddTask(Task{Name: "health", PeriodUs: 10_000_000, Run: func(uint32) { runs++ }}))
	assert.Len(t, r.TaskStats(), 1)

	r.Scheduler().Start(0)
	for _, ms := range []uint32{0, 1000, 5000, 9900} {
		counter.Set(ms * 168_000)
		r.Step()
	}
	assert.Equal(t, 1, runs, "a 10s task runs once in the first 10s")

	counter.Set(10_000 * 168_000)
	r.Step()
	assert.Equal(t, 2, runs)
}

func TestRunStopsOnCancelAndIdlesBetweenTicks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	var dts []uint32
	r, counter := newRunner(t, func(dtUs uint32) {
		ticks++
		dts = append(dts, dtUs)
		if ticks == 50 {
			cancel()
		}
	})

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 50, ticks)
	assert.Positive(t, counter.Waits())
	for _, dt := range dts[1:] {
		require.Equal(t, uint32(1000), dt)
	}
	assert.Zero(t, r.Scheduler().Stats().SkippedTicks)
}

func TestRunnerLogsOverruns(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()

	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	r, counter := newRunner(t, func(uint32) {})
	r.Scheduler().Start(0)
	r.Step()
	counter.Set(5500)
	r.Step()
	counter.Set(6000)
	r.Step()

	require.Len(t, lines, 1)
	assert.Equal(t, "[scheduler] overrun: resynchronised after 4 missed ticks (4 total)", lines[0])
}
