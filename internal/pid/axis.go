package pid

import (
	"fmt"

	"github.com/banshee-data/rotorcore/internal/filter"
)

// axis is the state owned by one rotational axis. Nothing in here is shared
// with another axis.
type axis struct {
	data AxisData

	dMinLowpass    filter.Pt2
	dMinRange      filter.Pt2
	dtermLowpass   filter.Lowpass
	dtermLowpass2  filter.Lowpass
	feedforwardPt3 filter.Pt3
	windupLpf      filter.Pt1

	previousSetpoint      float32
	previousGyroRateDterm float32

	gyroPrimed             bool
	feedforwardInitialized bool
}

func newAxis(cfg Config, dt float32) (axis, error) {
	var (
		a   axis
		err error
	)
	if a.dMinLowpass, err = filter.NewPt2(cfg.DMin.LowpassCutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("d-min lowpass: %w", err)
	}
	if a.dMinRange, err = filter.NewPt2(cfg.DMin.RangeCutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("d-min range: %w", err)
	}
	if a.dtermLowpass, err = filter.NewLowpass(cfg.DtermLowpass.Kind, cfg.DtermLowpass.CutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("dterm lowpass: %w", err)
	}
	if a.dtermLowpass2, err = filter.NewLowpass(cfg.DtermLowpass2.Kind, cfg.DtermLowpass2.CutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("dterm lowpass2: %w", err)
	}
	if a.feedforwardPt3, err = filter.NewPt3(cfg.FeedforwardCutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("feedforward lowpass: %w", err)
	}
	if a.windupLpf, err = filter.NewPt1(cfg.WindupCutoffHz, dt); err != nil {
		return axis{}, fmt.Errorf("windup lowpass: %w", err)
	}
	return a, nil
}

// setpointSpeed returns the setpoint derivative for this step and records
// the setpoint. The first call after (re)initialisation reports zero so a
// non-zero initial stick does not look like an instantaneous step.
func (a *axis) setpointSpeed(setpoint, dt float32) float32 {
	if !a.feedforwardInitialized {
		a.previousSetpoint = setpoint
		a.feedforwardPt3.Reset(0)
		a.feedforwardInitialized = true
	}
	speed := (setpoint - a.previousSetpoint) / dt
	a.previousSetpoint = setpoint
	return speed
}

// gyroDelta returns the negated derivative of the measured rate, which is
// the D-term input. Setpoint never enters it.
func (a *axis) gyroDelta(gyroRate, dt float32) float32 {
	if !a.gyroPrimed {
		a.previousGyroRateDterm = gyroRate
		a.gyroPrimed = true
	}
	delta := (a.previousGyroRateDterm - gyroRate) / dt
	a.previousGyroRateDterm = gyroRate
	return delta
}
