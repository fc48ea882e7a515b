package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/rotorcore/internal/monitoring"
	"github.com/banshee-data/rotorcore/internal/timeutil"
	"github.com/banshee-data/rotorcore/internal/units"
)

// CoreFunc is the hard real-time task. dtUs is the time since the previous
// core run, or zero on the first run.
type CoreFunc func(dtUs uint32)

// Task is a guarded, lower-priority task. It becomes due every PeriodUs and
// stays due until it has run.
type Task struct {
	Name     string
	PeriodUs uint32
	Run      func(nowUs uint32)
}

type taskState struct {
	Task
	periodCycles uint32
	lastCycles   uint32
	ran          bool
	runs         uint64
	deferrals    uint64
	warned       bool
}

func (t *taskState) due(now uint32) bool {
	return !t.ran || Elapsed(t.lastCycles, now) >= t.periodCycles
}

// TaskStats counts runs and deferrals of one guarded task.
type TaskStats struct {
	Name      string
	Runs      uint64
	Deferrals uint64
}

// StepResult describes what one dispatcher iteration did.
type StepResult struct {
	CoreRan  bool
	TasksRun int
	Deferred int
}

// Runner drives a Scheduler from a cycle counter: the core task runs on
// every deadline and guarded tasks run in registration order while the
// task guard allows.
type Runner struct {
	sched   *Scheduler
	counter timeutil.CycleCounter
	core    CoreFunc
	tasks   []*taskState

	lastCoreCycles uint32
	coreRan        bool
	reportedSkips  uint64
	resyncLogs     int

	logf func(format string, v ...interface{})
}

// resyncLogLimit caps overrun log lines; later overruns are only counted.
const resyncLogLimit = 10

// NewRunner wires a core task to s and counter.
func NewRunner(s *Scheduler, counter timeutil.CycleCounter, core CoreFunc) *Runner {
	return &Runner{
		sched:   s,
		counter: counter,
		core:    core,
		logf:    monitoring.Prefixed("[scheduler] "),
	}
}

// AddTask registers a guarded task. Tasks added first have priority.
func (r *Runner) AddTask(t Task) error {
	if t.Run == nil {
		return fmt.Errorf("%w: task %q has no run function", ErrInvalidConfig, t.Name)
	}
	if t.PeriodUs == 0 {
		return fmt.Errorf("%w: task %q needs a positive period", ErrInvalidConfig, t.Name)
	}
	// Periods must stay comparable against a wrapping 32-bit counter.
	period := uint64(t.PeriodUs) * uint64(r.sched.ClockRate()) / 1_000_000
	if period >= math.MaxInt32 {
		return fmt.Errorf("%w: task %q period %dus is %d cycles, limit is %d",
			ErrInvalidConfig, t.Name, t.PeriodUs, period, math.MaxInt32-1)
	}
	r.tasks = append(r.tasks, &taskState{
		Task:         t,
		periodCycles: uint32(period),
	})
	return nil
}

// Scheduler returns the underlying scheduler.
func (r *Runner) Scheduler() *Scheduler { return r.sched }

// TaskStats returns per-task counters in registration order.
func (r *Runner) TaskStats() []TaskStats {
	out := make([]TaskStats, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, TaskStats{Name: t.Name, Runs: t.runs, Deferrals: t.deferrals})
	}
	return out
}

// Step performs one dispatcher iteration.
func (r *Runner) Step() StepResult {
	var res StepResult

	now := r.counter.Cycles()
	if r.sched.ShouldRun(now) {
		var dtUs uint32
		if r.coreRan {
			dtUs = units.CyclesToMicros(Elapsed(r.lastCoreCycles, now), r.sched.ClockRate())
		}
		r.lastCoreCycles = now
		r.coreRan = true
		r.core(dtUs)
		res.CoreRan = true
		r.logResync()
	}

	for _, t := range r.tasks {
		start := r.counter.Cycles()
		if !t.due(start) {
			continue
		}
		if !r.sched.GuardedTaskMayRun(start) {
			t.deferrals++
			res.Deferred++
			break
		}
		t.Run(units.CyclesToMicros(start, r.sched.ClockRate()))
		end := r.counter.Cycles()
		r.sched.GuardedTaskDone(start, end)
		if took, ceiling := Elapsed(start, end), r.sched.taskGuard.max; took > ceiling && !t.warned {
			t.warned = true
			r.logf("task %s took %d cycles, above the task guard ceiling of %d; raise task_guard_max_us",
				t.Name, took, ceiling)
		}
		t.lastCycles = start
		t.ran = true
		t.runs++
		res.TasksRun++
	}
	return res
}

func (r *Runner) logResync() {
	skipped := r.sched.Stats().SkippedTicks
	if skipped == r.reportedSkips {
		return
	}
	missed := skipped - r.reportedSkips
	r.reportedSkips = skipped
	if r.resyncLogs >= resyncLogLimit {
		return
	}
	r.resyncLogs++
	r.logf("overrun: resynchronised after %d missed ticks (%d total)", missed, skipped)
}

// Run starts the scheduler at the current count and dispatches until ctx is
// cancelled. Counters implementing timeutil.Waiter are used to idle until
// the next wake point; others are polled.
func (r *Runner) Run(ctx context.Context) error {
	r.sched.Start(r.counter.Cycles())
	waiter, _ := r.counter.(timeutil.Waiter)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res := r.Step()
		if waiter == nil || res.CoreRan || res.TasksRun > 0 {
			continue
		}
		now := r.counter.Cycles()
		if wait := Compare(r.sched.WakeCycles(), now); wait > 0 {
			waiter.WaitCycles(uint32(wait))
		} else if rem := r.sched.Remaining(now); rem > 0 {
			waiter.WaitCycles(uint32(rem))
		}
	}
}
