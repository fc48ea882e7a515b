package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/pid"
	"github.com/banshee-data/rotorcore/internal/plant"
	"github.com/banshee-data/rotorcore/internal/scheduler"
	"github.com/banshee-data/rotorcore/internal/telemetry"
	"github.com/banshee-data/rotorcore/internal/timeutil"
	"github.com/banshee-data/rotorcore/internal/units"
)

// armThrottle is the throttle below which integrals are held at zero.
const armThrottle = 0.05

// stickStep describes the pilot input: a constant throttle plus one stick
// deflection between At and Release.
type stickStep struct {
	Throttle float32
	Axis     pid.Axis
	Value    float32
	At       time.Duration
	Release  time.Duration
}

func (s stickStep) demands(t time.Duration) pid.Demands {
	d := pid.Demands{Throttle: s.Throttle}
	if t < s.At || (s.Release > s.At && t >= s.Release) {
		return d
	}
	switch s.Axis {
	case pid.Roll:
		d.Roll = s.Value
	case pid.Pitch:
		d.Pitch = s.Value
	case pid.Yaw:
		d.Yaw = s.Value
	}
	return d
}

type simConfig struct {
	Duration   time.Duration
	Sticks     stickStep
	CoreCostUs uint32
	TaskCostUs uint32
	JitterUs   uint32
	Seed       uint64
	// Realtime paces the loop against the wall clock instead of a
	// simulated counter. Costs and jitter are then whatever the host
	// produces.
	Realtime bool

	BlackboxPeriodUs  uint32
	TelemetryPeriodUs uint32
}

type frameSink interface {
	Add(ctx context.Context, f blackbox.Frame) error
}

type samplePublisher interface {
	Publish(s telemetry.Sample) error
}

type simCounter interface {
	timeutil.CycleCounter
	timeutil.Waiter
}

// jitterCounter adds a random wake-up latency to every idle wait, which is
// what makes loop starts late on the simulated clock.
type jitterCounter struct {
	*timeutil.MockCounter
	maxCycles uint32
	rng       *rand.Rand
}

func (c *jitterCounter) WaitCycles(n uint32) {
	if c.maxCycles > 0 {
		n += c.rng.Uint32N(c.maxCycles + 1)
	}
	c.MockCounter.WaitCycles(n)
}

// simulator closes the loop between the controller and the plant on a
// simulated cycle counter.
type simulator struct {
	cfg     simConfig
	ctrl    *pid.Controller
	model   *plant.Model
	counter simCounter
	spend   func(cycles uint32)
	runner  *scheduler.Runner

	sink frameSink
	link samplePublisher

	ctx    context.Context
	cancel context.CancelFunc
	err    error

	simUs uint64
	ticks uint64
	last  blackbox.Frame

	recorded  int
	published int
}

func newSimulator(cfg simConfig, ctrl *pid.Controller, model *plant.Model, schedCfg scheduler.Config, sink frameSink, link samplePublisher) (*simulator, error) {
	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return nil, err
	}
	s := &simulator{
		cfg:   cfg,
		ctrl:  ctrl,
		model: model,
		sink:  sink,
		link:  link,
	}
	if cfg.Realtime {
		s.counter = timeutil.NewClockCounter(timeutil.RealClock{}, schedCfg.ClockRate)
		s.spend = func(uint32) {}
	} else {
		mock := &jitterCounter{
			MockCounter: timeutil.NewMockCounter(schedCfg.ClockRate, 0),
			maxCycles:   units.MicrosToCycles(cfg.JitterUs, schedCfg.ClockRate),
			rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		}
		s.counter = mock
		s.spend = mock.Advance
	}
	s.runner = scheduler.NewRunner(sched, s.counter, s.core)

	if sink != nil {
		if err := s.runner.AddTask(scheduler.Task{Name: "blackbox", PeriodUs: cfg.BlackboxPeriodUs, Run: s.record}); err != nil {
			return nil, err
		}
	}
	if link != nil {
		if err := s.runner.AddTask(scheduler.Task{Name: "telemetry", PeriodUs: cfg.TelemetryPeriodUs, Run: s.publish}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *simulator) core(dtUs uint32) {
	now := s.counter.Cycles()
	sched := s.runner.Scheduler()

	t := time.Duration(s.simUs) * time.Microsecond
	sticks := s.cfg.Sticks.demands(t)
	state := s.model.State()
	out := s.ctrl.Update(dtUs, sticks, state, sticks.Throttle < armThrottle)

	dt := 1 / s.ctrl.Config().LoopRateHz
	if dtUs > 0 {
		dt = units.MicrosToSeconds(dtUs)
	}
	s.model.Step(dt, out)

	s.simUs += uint64(dtUs)
	s.ticks++
	s.last = blackbox.Frame{
		Tick:           s.ticks,
		TimeUs:         s.simUs,
		Throttle:       sticks.Throttle,
		Setpoint:       s.ctrl.RateSetpoints(),
		Gyro:           [pid.AxisCount]float32{state.DPhi, state.DTheta, state.DPsi},
		Output:         [pid.AxisCount]float32{out.Roll, out.Pitch, out.Yaw},
		LatenessCycles: scheduler.Elapsed(sched.LastTargetCycles(), now),
		DtermCutoffHz:  s.ctrl.DtermCutoffHz(),
	}

	s.spend(units.MicrosToCycles(s.cfg.CoreCostUs, sched.ClockRate()))
	if s.simUs >= uint64(s.cfg.Duration/time.Microsecond) {
		s.cancel()
	}
}

func (s *simulator) record(uint32) {
	if s.err != nil || s.ticks == 0 || s.ctx.Err() != nil {
		return
	}
	if err := s.sink.Add(s.ctx, s.last); err != nil {
		s.fail(fmt.Errorf("blackbox: %w", err))
		return
	}
	s.recorded++
	s.spendTaskCost()
}

func (s *simulator) publish(uint32) {
	if s.err != nil || s.ticks == 0 {
		return
	}
	f := s.last
	state := s.model.Truth()
	err := s.link.Publish(telemetry.Sample{
		Tick:            f.Tick,
		TimeUs:          f.TimeUs,
		Throttle:        f.Throttle,
		Roll:            f.Output[pid.Roll],
		Pitch:           f.Output[pid.Pitch],
		Yaw:             f.Output[pid.Yaw],
		Phi:             state.Phi,
		Theta:           state.Theta,
		Psi:             state.Psi,
		DtermCutoffHz:   f.DtermCutoffHz,
		LoopStartCycles: s.runner.Scheduler().LoopStartCycles(),
		SkippedTicks:    s.runner.Scheduler().Stats().SkippedTicks,
	})
	if err != nil {
		s.fail(fmt.Errorf("telemetry: %w", err))
		return
	}
	s.published++
	s.spendTaskCost()
}

func (s *simulator) spendTaskCost() {
	s.spend(units.MicrosToCycles(s.cfg.TaskCostUs, s.runner.Scheduler().ClockRate()))
}

func (s *simulator) fail(err error) {
	s.err = err
	s.cancel()
}

// run drives the scheduler until the simulated duration has elapsed or a
// task fails.
func (s *simulator) run(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	err := s.runner.Run(s.ctx)
	if s.err != nil {
		return s.err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && s.ctx.Err() == nil {
		return err
	}
	return nil
}
