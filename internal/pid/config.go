package pid

import (
	"errors"
	"fmt"

	"github.com/banshee-data/rotorcore/internal/filter"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("pid: invalid config")

// LowpassConfig selects a D-term low-pass implementation and its cutoff.
type LowpassConfig struct {
	Kind     filter.Kind
	CutoffHz float32
}

// DynLpfConfig controls throttle-scheduled D-term low-pass cutoffs.
type DynLpfConfig struct {
	Enabled bool
	MinHz   float32
	MaxHz   float32
	// Expo bends the throttle curve upwards; 0 is linear, 10 the maximum.
	Expo float32
	// UpdateIntervalUs is the minimum time between cutoff re-evaluations.
	UpdateIntervalUs uint32
	// ThrottleBuckets is the number of throttle quantization steps.
	ThrottleBuckets int
}

// DMinConfig controls the dynamic D gain.
type DMinConfig struct {
	Enabled bool
	// Ratio is the D gain applied at rest, as a fraction of RateD.
	Ratio float32
	// Gain converts smoothed setpoint speed (deg/s^2) into a boost in [0,1].
	Gain            float32
	RangeCutoffHz   float32
	LowpassCutoffHz float32
}

// Config holds the gains, limits and filter settings of a Controller.
type Config struct {
	// LoopRateHz is the nominal control rate. Filter coefficients are
	// derived from it; a zero elapsed time passed to Update also falls back
	// to it.
	LoopRateHz float32

	RateP, RateI, RateD, RateF float32
	LevelP                     float32

	MaxAngleDeg   float32
	MaxRateDps    float32
	MaxYawRateDps float32
	OutputLimit   float32

	DtermLowpass  LowpassConfig
	DtermLowpass2 LowpassConfig
	DynLpf        DynLpfConfig
	DMin          DMinConfig

	FeedforwardCutoffHz float32
	YawPtermCutoffHz    float32
	WindupCutoffHz      float32
	// WindupThreshold is the smoothed saturation level, as a fraction of
	// OutputLimit, at or above which the integral stays frozen.
	WindupThreshold float32

	// ResetFeedforwardOnReset re-arms the feedforward lazy initialisation
	// whenever Update is called with reset set.
	ResetFeedforwardOnReset bool
}

// DefaultConfig returns a tune suitable for a small quadrotor at 1kHz.
func DefaultConfig() Config {
	return Config{
		LoopRateHz: 1000,

		RateP:  0.0125,
		RateI:  0.0025,
		RateD:  0.00015,
		RateF:  0.00002,
		LevelP: 4,

		MaxAngleDeg:   45,
		MaxRateDps:    670,
		MaxYawRateDps: 400,
		OutputLimit:   1,

		DtermLowpass:  LowpassConfig{Kind: filter.KindPt1, CutoffHz: 100},
		DtermLowpass2: LowpassConfig{Kind: filter.KindPt1, CutoffHz: 150},
		DynLpf: DynLpfConfig{
			Enabled:          true,
			MinHz:            75,
			MaxHz:            150,
			Expo:             5,
			UpdateIntervalUs: 5000,
			ThrottleBuckets:  100,
		},
		DMin: DMinConfig{
			Enabled:         true,
			Ratio:           0.6,
			Gain:            1.0 / 2000,
			RangeCutoffHz:   40,
			LowpassCutoffHz: 35,
		},

		FeedforwardCutoffHz: 30,
		YawPtermCutoffHz:    100,
		WindupCutoffHz:      15,
		WindupThreshold:     0.95,

		ResetFeedforwardOnReset: true,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.LoopRateHz <= 0 {
		return fmt.Errorf("%w: loop rate must be positive, got %v", ErrInvalidConfig, c.LoopRateHz)
	}
	for name, v := range map[string]float32{
		"rate_p": c.RateP, "rate_i": c.RateI, "rate_d": c.RateD, "rate_f": c.RateF, "level_p": c.LevelP,
		"max_angle": c.MaxAngleDeg, "max_rate": c.MaxRateDps, "max_yaw_rate": c.MaxYawRateDps,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.OutputLimit <= 0 {
		return fmt.Errorf("%w: output limit must be positive, got %v", ErrInvalidConfig, c.OutputLimit)
	}
	if c.WindupThreshold <= 0 || c.WindupThreshold > 1 {
		return fmt.Errorf("%w: windup threshold must be in (0,1], got %v", ErrInvalidConfig, c.WindupThreshold)
	}
	if c.DMin.Enabled && (c.DMin.Ratio < 0 || c.DMin.Ratio > 1) {
		return fmt.Errorf("%w: d-min ratio must be in [0,1], got %v", ErrInvalidConfig, c.DMin.Ratio)
	}
	if c.DynLpf.Enabled {
		d := c.DynLpf
		if d.MinHz <= 0 || d.MaxHz < d.MinHz {
			return fmt.Errorf("%w: dynamic lowpass range %v..%vHz is invalid", ErrInvalidConfig, d.MinHz, d.MaxHz)
		}
		if d.ThrottleBuckets <= 0 {
			return fmt.Errorf("%w: dynamic lowpass needs at least one throttle bucket", ErrInvalidConfig)
		}
		if d.Expo < 0 || d.Expo > 10 {
			return fmt.Errorf("%w: dynamic lowpass expo must be in [0,10], got %v", ErrInvalidConfig, d.Expo)
		}
		if c.DtermLowpass.Kind == filter.KindNone || c.DtermLowpass.CutoffHz <= 0 {
			return fmt.Errorf("%w: dynamic lowpass requires an active first D-term lowpass", ErrInvalidConfig)
		}
	}
	return nil
}
