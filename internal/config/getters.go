package config

import "time"

// GetLoopRateHz returns the loop_rate_hz value or the default.
func (c *TuningConfig) GetLoopRateHz() float64 {
	if c.LoopRateHz == nil {
		return 1000
	}
	return *c.LoopRateHz
}

// GetClockRateHz returns the clock_rate_hz value or the default.
func (c *TuningConfig) GetClockRateHz() int64 {
	if c.ClockRateHz == nil {
		return 168_000_000
	}
	return *c.ClockRateHz
}

// GetRateP returns the rate_p value or the default.
func (c *TuningConfig) GetRateP() float64 {
	if c.RateP == nil {
		return 0.0125
	}
	return *c.RateP
}

// GetRateI returns the rate_i value or the default.
func (c *TuningConfig) GetRateI() float64 {
	if c.RateI == nil {
		return 0.0025
	}
	return *c.RateI
}

// GetRateD returns the rate_d value or the default.
func (c *TuningConfig) GetRateD() float64 {
	if c.RateD == nil {
		return 0.00015
	}
	return *c.RateD
}

// GetRateF returns the rate_f value or the default.
func (c *TuningConfig) GetRateF() float64 {
	if c.RateF == nil {
		return 0.00002
	}
	return *c.RateF
}

// GetLevelP returns the level_p value or the default.
func (c *TuningConfig) GetLevelP() float64 {
	if c.LevelP == nil {
		return 4.0
	}
	return *c.LevelP
}

// GetMaxAngleDeg returns the max_angle_deg value or the default.
func (c *TuningConfig) GetMaxAngleDeg() float64 {
	if c.MaxAngleDeg == nil {
		return 45
	}
	return *c.MaxAngleDeg
}

// GetMaxRateDps returns the max_rate_dps value or the default.
func (c *TuningConfig) GetMaxRateDps() float64 {
	if c.MaxRateDps == nil {
		return 670
	}
	return *c.MaxRateDps
}

// GetMaxYawRateDps returns the max_yaw_rate_dps value or the default.
func (c *TuningConfig) GetMaxYawRateDps() float64 {
	if c.MaxYawRateDps == nil {
		return 400
	}
	return *c.MaxYawRateDps
}

// GetOutputLimit returns the output_limit value or the default.
func (c *TuningConfig) GetOutputLimit() float64 {
	if c.OutputLimit == nil {
		return 1.0
	}
	return *c.OutputLimit
}

// GetDtermLowpassType returns the dterm_lowpass_type value or the default.
func (c *TuningConfig) GetDtermLowpassType() string {
	if c.DtermLowpassType == nil {
		return "pt1"
	}
	return *c.DtermLowpassType
}

// GetDtermLowpassHz returns the dterm_lowpass_hz value or the default.
func (c *TuningConfig) GetDtermLowpassHz() float64 {
	if c.DtermLowpassHz == nil {
		return 100
	}
	return *c.DtermLowpassHz
}

// GetDtermLowpass2Type returns the dterm_lowpass2_type value or the default.
func (c *TuningConfig) GetDtermLowpass2Type() string {
	if c.DtermLowpass2Type == nil {
		return "pt1"
	}
	return *c.DtermLowpass2Type
}

// GetDtermLowpass2Hz returns the dterm_lowpass2_hz value or the default.
func (c *TuningConfig) GetDtermLowpass2Hz() float64 {
	if c.DtermLowpass2Hz == nil {
		return 150
	}
	return *c.DtermLowpass2Hz
}

// GetDynLpfEnabled returns the dyn_lpf_enabled value or the default.
func (c *TuningConfig) GetDynLpfEnabled() bool {
	if c.DynLpfEnabled == nil {
		return true
	}
	return *c.DynLpfEnabled
}

// GetDynLpfMinHz returns the dyn_lpf_min_hz value or the default.
func (c *TuningConfig) GetDynLpfMinHz() float64 {
	if c.DynLpfMinHz == nil {
		return 75
	}
	return *c.DynLpfMinHz
}

// GetDynLpfMaxHz returns the dyn_lpf_max_hz value or the default.
func (c *TuningConfig) GetDynLpfMaxHz() float64 {
	if c.DynLpfMaxHz == nil {
		return 150
	}
	return *c.DynLpfMaxHz
}

// GetDynLpfExpo returns the dyn_lpf_expo value or the default.
func (c *TuningConfig) GetDynLpfExpo() float64 {
	if c.DynLpfExpo == nil {
		return 5
	}
	return *c.DynLpfExpo
}

// GetDynLpfThrottleBuckets returns the dyn_lpf_throttle_buckets value or the default.
func (c *TuningConfig) GetDynLpfThrottleBuckets() int {
	if c.DynLpfThrottleBuckets == nil {
		return 100
	}
	return *c.DynLpfThrottleBuckets
}

// GetDMinEnabled returns the d_min_enabled value or the default.
func (c *TuningConfig) GetDMinEnabled() bool {
	if c.DMinEnabled == nil {
		return true
	}
	return *c.DMinEnabled
}

// GetDMinRatio returns the d_min_ratio value or the default.
func (c *TuningConfig) GetDMinRatio() float64 {
	if c.DMinRatio == nil {
		return 0.6
	}
	return *c.DMinRatio
}

// GetDMinGain returns the d_min_gain value or the default.
func (c *TuningConfig) GetDMinGain() float64 {
	if c.DMinGain == nil {
		return 0.0005
	}
	return *c.DMinGain
}

// GetDMinRangeHz returns the d_min_range_hz value or the default.
func (c *TuningConfig) GetDMinRangeHz() float64 {
	if c.DMinRangeHz == nil {
		return 40
	}
	return *c.DMinRangeHz
}

// GetDMinLowpassHz returns the d_min_lowpass_hz value or the default.
func (c *TuningConfig) GetDMinLowpassHz() float64 {
	if c.DMinLowpassHz == nil {
		return 35
	}
	return *c.DMinLowpassHz
}

// GetFeedforwardHz returns the feedforward_hz value or the default.
func (c *TuningConfig) GetFeedforwardHz() float64 {
	if c.FeedforwardHz == nil {
		return 30
	}
	return *c.FeedforwardHz
}

// GetYawPtermHz returns the yaw_pterm_hz value or the default.
func (c *TuningConfig) GetYawPtermHz() float64 {
	if c.YawPtermHz == nil {
		return 100
	}
	return *c.YawPtermHz
}

// GetWindupHz returns the windup_hz value or the default.
func (c *TuningConfig) GetWindupHz() float64 {
	if c.WindupHz == nil {
		return 15
	}
	return *c.WindupHz
}

// GetWindupThreshold returns the windup_threshold value or the default.
func (c *TuningConfig) GetWindupThreshold() float64 {
	if c.WindupThreshold == nil {
		return 0.95
	}
	return *c.WindupThreshold
}

// GetResetFeedforwardOnReset returns the reset_feedforward_on_reset value or the default.
func (c *TuningConfig) GetResetFeedforwardOnReset() bool {
	if c.ResetFeedforwardOnReset == nil {
		return true
	}
	return *c.ResetFeedforwardOnReset
}

// GetLoopStartMinUs returns the loop_start_min_us value or the default.
func (c *TuningConfig) GetLoopStartMinUs() float64 {
	if c.LoopStartMinUs == nil {
		return 1
	}
	return *c.LoopStartMinUs
}

// GetLoopStartMaxUs returns the loop_start_max_us value or the default.
func (c *TuningConfig) GetLoopStartMaxUs() float64 {
	if c.LoopStartMaxUs == nil {
		return 12
	}
	return *c.LoopStartMaxUs
}

// GetLoopStartDeltaUpUs returns the loop_start_delta_up_us value or the default.
func (c *TuningConfig) GetLoopStartDeltaUpUs() float64 {
	if c.LoopStartDeltaUpUs == nil {
		return 1
	}
	return *c.LoopStartDeltaUpUs
}

// GetLoopStartDeltaDownUs returns the loop_start_delta_down_us value or the default.
func (c *TuningConfig) GetLoopStartDeltaDownUs() float64 {
	if c.LoopStartDeltaDownUs == nil {
		return 0.05
	}
	return *c.LoopStartDeltaDownUs
}

// GetTaskGuardMinUs returns the task_guard_min_us value or the default.
func (c *TuningConfig) GetTaskGuardMinUs() float64 {
	if c.TaskGuardMinUs == nil {
		return 3
	}
	return *c.TaskGuardMinUs
}

// GetTaskGuardMaxUs returns the task_guard_max_us value or the default.
func (c *TuningConfig) GetTaskGuardMaxUs() float64 {
	if c.TaskGuardMaxUs == nil {
		return 100
	}
	return *c.TaskGuardMaxUs
}

// GetTaskGuardDeltaUpUs returns the task_guard_delta_up_us value or the default.
func (c *TuningConfig) GetTaskGuardDeltaUpUs() float64 {
	if c.TaskGuardDeltaUpUs == nil {
		return 1
	}
	return *c.TaskGuardDeltaUpUs
}

// GetTaskGuardDeltaDownUs returns the task_guard_delta_down_us value or the default.
func (c *TuningConfig) GetTaskGuardDeltaDownUs() float64 {
	if c.TaskGuardDeltaDownUs == nil {
		return 0.01
	}
	return *c.TaskGuardDeltaDownUs
}

// GetGuardMarginUs returns the guard_margin_us value or the default.
func (c *TuningConfig) GetGuardMarginUs() float64 {
	if c.GuardMarginUs == nil {
		return 2
	}
	return *c.GuardMarginUs
}

// GetDynLpfUpdateInterval parses and returns dyn_lpf_update_interval as a time.Duration.
func (c *TuningConfig) GetDynLpfUpdateInterval() time.Duration {
	if c.DynLpfUpdateInterval == nil || *c.DynLpfUpdateInterval == "" {
		return 5 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.DynLpfUpdateInterval)
	if err != nil || d <= 0 {
		return 5 * time.Millisecond // default on parse error
	}
	return d
}

// GetTelemetryInterval parses and returns telemetry_interval as a time.Duration.
func (c *TuningConfig) GetTelemetryInterval() time.Duration {
	if c.TelemetryInterval == nil || *c.TelemetryInterval == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TelemetryInterval)
	if err != nil || d <= 0 {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetBlackboxInterval parses and returns blackbox_interval as a time.Duration.
func (c *TuningConfig) GetBlackboxInterval() time.Duration {
	if c.BlackboxInterval == nil || *c.BlackboxInterval == "" {
		return 2 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.BlackboxInterval)
	if err != nil || d <= 0 {
		return 2 * time.Millisecond // default on parse error
	}
	return d
}
