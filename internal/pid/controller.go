// Package pid implements the cascaded angle/rate control law.
//
// The outer angle loop turns stick angles into rate setpoints for roll and
// pitch; the inner rate loop runs a PID with feedforward per axis. The
// D-term is taken from the measured rate only and is conditioned by two
// selectable low-pass stages whose cutoff may follow throttle.
//
// A Controller is not safe for concurrent use. It is meant to be owned by
// the single control-loop context that calls Update.
package pid

import (
	"fmt"

	"github.com/banshee-data/rotorcore/internal/filter"
	"github.com/banshee-data/rotorcore/internal/units"
)

// Controller is the angle/rate PID controller.
type Controller struct {
	cfg Config
	dt  float32

	axes            [AxisCount]axis
	ptermYawLowpass filter.Pt1

	angleMode bool
	setpoints [AxisCount]float32

	nowUs                           uint32
	lastDynLpfUpdateUs              uint32
	dynLpfStarted                   bool
	dynLpfPreviousQuantizedThrottle int32
	dynLpfRecomputes                int
	dtermCutoffHz                   float32
}

// Diagnostics is a snapshot of controller bookkeeping for logging.
type Diagnostics struct {
	Axes              [AxisCount]AxisData
	RateSetpoints     [AxisCount]float32
	DtermCutoffHz     float32
	QuantizedThrottle int32
	DynLpfRecomputes  int
	AngleMode         bool
}

// New validates cfg and builds a controller with all filters at rest.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:                             cfg,
		dt:                              1 / cfg.LoopRateHz,
		dynLpfPreviousQuantizedThrottle: -1,
		dtermCutoffHz:                   cfg.DtermLowpass.CutoffHz,
	}
	for i := range c.axes {
		a, err := newAxis(cfg, c.dt)
		if err != nil {
			return nil, fmt.Errorf("%v axis: %w", Axis(i), err)
		}
		c.axes[i] = a
	}
	var err error
	if c.ptermYawLowpass, err = filter.NewPt1(cfg.YawPtermCutoffHz, c.dt); err != nil {
		return nil, fmt.Errorf("yaw pterm lowpass: %w", err)
	}
	return c, nil
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() Config { return c.cfg }

// SetAngleMode enables or bypasses the outer angle loop.
func (c *Controller) SetAngleMode(enabled bool) { c.angleMode = enabled }

// AngleMode reports whether the outer angle loop is active.
func (c *Controller) AngleMode() bool { return c.angleMode }

// Axis returns the term breakdown of the last Update for one axis.
func (c *Controller) Axis(a Axis) AxisData { return c.axes[a].data }

// RateSetpoints returns the rate setpoints of the last Update in deg/s.
func (c *Controller) RateSetpoints() [AxisCount]float32 { return c.setpoints }

// DtermCutoffHz returns the cutoff currently applied to the first D-term
// low-pass stage.
func (c *Controller) DtermCutoffHz() float32 { return c.dtermCutoffHz }

// Diagnostics returns a snapshot of the controller state.
func (c *Controller) Diagnostics() Diagnostics {
	d := Diagnostics{
		DtermCutoffHz:     c.dtermCutoffHz,
		QuantizedThrottle: c.dynLpfPreviousQuantizedThrottle,
		DynLpfRecomputes:  c.dynLpfRecomputes,
		AngleMode:         c.angleMode,
		RateSetpoints:     c.setpoints,
	}
	for i := range c.axes {
		d.Axes[i] = c.axes[i].data
	}
	return d
}

// Update runs one control step. dtUs is the time since the previous step;
// zero falls back to the nominal loop period. When reset is set every
// integral is cleared and stays cleared for this step.
func (c *Controller) Update(dtUs uint32, raw Demands, state VehicleState, reset bool) Demands {
	dt := c.dt
	if dtUs > 0 {
		dt = units.MicrosToSeconds(dtUs)
	}
	c.nowUs += dtUs

	assertFinite("throttle", raw.Throttle)
	c.updateDynLpf(raw.Throttle)

	if reset {
		for i := range c.axes {
			c.axes[i].data.Sum = 0
			if c.cfg.ResetFeedforwardOnReset {
				c.axes[i].feedforwardInitialized = false
			}
		}
	}

	setpoints := c.rateSetpoints(raw, state)
	c.setpoints = setpoints
	gyro := state.rates()

	var out [AxisCount]float32
	for i := range c.axes {
		out[i] = c.updateAxis(Axis(i), setpoints[i], gyro[i], dt, reset)
	}

	return Demands{
		Throttle: raw.Throttle,
		Roll:     out[Roll],
		Pitch:    out[Pitch],
		Yaw:      out[Yaw],
	}
}

// rateSetpoints applies the outer loop. Yaw is always rate-commanded.
func (c *Controller) rateSetpoints(raw Demands, state VehicleState) [AxisCount]float32 {
	roll := units.Clamp(raw.Roll, -1, 1)
	pitch := units.Clamp(raw.Pitch, -1, 1)
	yaw := units.Clamp(raw.Yaw, -1, 1)

	var sp [AxisCount]float32
	if c.angleMode {
		assertFinite("phi", state.Phi)
		assertFinite("theta", state.Theta)
		maxRate := c.cfg.MaxRateDps
		sp[Roll] = units.Clamp(c.cfg.LevelP*(roll*c.cfg.MaxAngleDeg-state.Phi), -maxRate, maxRate)
		sp[Pitch] = units.Clamp(c.cfg.LevelP*(pitch*c.cfg.MaxAngleDeg-state.Theta), -maxRate, maxRate)
	} else {
		sp[Roll] = roll * c.cfg.MaxRateDps
		sp[Pitch] = pitch * c.cfg.MaxRateDps
	}
	sp[Yaw] = yaw * c.cfg.MaxYawRateDps
	return sp
}

func (c *Controller) updateAxis(ax Axis, setpoint, gyroRate, dt float32, reset bool) float32 {
	assertFinite("gyro rate", gyroRate)

	a := &c.axes[ax]
	limit := c.cfg.OutputLimit
	rateError := setpoint - gyroRate

	p := c.cfg.RateP * rateError
	if ax == Yaw {
		p = c.ptermYawLowpass.Apply(p)
	}

	spSpeed := a.setpointSpeed(setpoint, dt)

	dFiltered := a.dtermLowpass2.Apply(a.dtermLowpass.Apply(a.gyroDelta(gyroRate, dt)))
	d := c.cfg.RateD * c.dMinScale(a, spSpeed) * dFiltered

	f := a.feedforwardPt3.Apply(c.cfg.RateF * spSpeed)

	// Saturation is judged on the output the current integral would give.
	pre := p + c.cfg.RateI*a.data.Sum + d + f
	level := a.windupLpf.Apply(min(units.Abs(pre)/limit, 1))
	pushingOutward := rateError*pre > 0
	saturated := units.Abs(pre) >= limit || level >= c.cfg.WindupThreshold

	switch {
	case reset:
		a.data.Sum = 0
	case saturated && pushingOutward:
		// frozen
	default:
		if next := a.data.Sum + rateError*dt; isFinite(next) {
			a.data.Sum = next
		}
	}
	assertFinite("integral", a.data.Sum)

	i := c.cfg.RateI * a.data.Sum
	out := units.Clamp(p+i+d+f, -limit, limit)
	assertFinite("axis output", out)

	a.data.P, a.data.I, a.data.D, a.data.F = p, i, d, f
	return out
}

// dMinScale returns the fraction of RateD to apply, in [Ratio, 1]. Fast
// setpoint changes raise it towards 1.
func (c *Controller) dMinScale(a *axis, setpointSpeed float32) float32 {
	if !c.cfg.DMin.Enabled {
		return 1
	}
	speed := a.dMinRange.Apply(units.Abs(setpointSpeed))
	boost := units.Clamp(speed*c.cfg.DMin.Gain, 0, 1)
	boost = units.Clamp(a.dMinLowpass.Apply(boost), 0, 1)
	ratio := c.cfg.DMin.Ratio
	return ratio + (1-ratio)*boost
}
