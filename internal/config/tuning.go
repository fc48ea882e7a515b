package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rotorcore/internal/filter"
	"github.com/banshee-data/rotorcore/internal/pid"
	"github.com/banshee-data/rotorcore/internal/scheduler"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrInvalidTuning is wrapped by every Validate failure.
var ErrInvalidTuning = errors.New("invalid tuning")

// TuningConfig represents the flight tuning file. Every field is optional;
// the Get* accessors supply the default for anything left out. The file is
// read-only at runtime.
type TuningConfig struct {
	// Loop timing
	LoopRateHz  *float64 `json:"loop_rate_hz,omitempty"`
	ClockRateHz *int64   `json:"clock_rate_hz,omitempty"`

	// Rate and level gains
	RateP  *float64 `json:"rate_p,omitempty"`
	RateI  *float64 `json:"rate_i,omitempty"`
	RateD  *float64 `json:"rate_d,omitempty"`
	RateF  *float64 `json:"rate_f,omitempty"`
	LevelP *float64 `json:"level_p,omitempty"`

	// Limits
	MaxAngleDeg   *float64 `json:"max_angle_deg,omitempty"`
	MaxRateDps    *float64 `json:"max_rate_dps,omitempty"`
	MaxYawRateDps *float64 `json:"max_yaw_rate_dps,omitempty"`
	OutputLimit   *float64 `json:"output_limit,omitempty"`

	// D-term low-pass stages. Types are none, pt1, pt2, pt3 or biquad.
	DtermLowpassType  *string  `json:"dterm_lowpass_type,omitempty"`
	DtermLowpassHz    *float64 `json:"dterm_lowpass_hz,omitempty"`
	DtermLowpass2Type *string  `json:"dterm_lowpass2_type,omitempty"`
	DtermLowpass2Hz   *float64 `json:"dterm_lowpass2_hz,omitempty"`

	// Throttle-scheduled D-term cutoff
	DynLpfEnabled         *bool    `json:"dyn_lpf_enabled,omitempty"`
	DynLpfMinHz           *float64 `json:"dyn_lpf_min_hz,omitempty"`
	DynLpfMaxHz           *float64 `json:"dyn_lpf_max_hz,omitempty"`
	DynLpfExpo            *float64 `json:"dyn_lpf_expo,omitempty"`
	DynLpfUpdateInterval  *string  `json:"dyn_lpf_update_interval,omitempty"` // duration string like "5ms"
	DynLpfThrottleBuckets *int     `json:"dyn_lpf_throttle_buckets,omitempty"`

	// Dynamic D gain
	DMinEnabled   *bool    `json:"d_min_enabled,omitempty"`
	DMinRatio     *float64 `json:"d_min_ratio,omitempty"`
	DMinGain      *float64 `json:"d_min_gain,omitempty"`
	DMinRangeHz   *float64 `json:"d_min_range_hz,omitempty"`
	DMinLowpassHz *float64 `json:"d_min_lowpass_hz,omitempty"`

	// Smoothing and anti-windup
	FeedforwardHz           *float64 `json:"feedforward_hz,omitempty"`
	YawPtermHz              *float64 `json:"yaw_pterm_hz,omitempty"`
	WindupHz                *float64 `json:"windup_hz,omitempty"`
	WindupThreshold         *float64 `json:"windup_threshold,omitempty"`
	ResetFeedforwardOnReset *bool    `json:"reset_feedforward_on_reset,omitempty"`

	// Scheduler jitter windows, microseconds
	LoopStartMinUs       *float64 `json:"loop_start_min_us,omitempty"`
	LoopStartMaxUs       *float64 `json:"loop_start_max_us,omitempty"`
	LoopStartDeltaUpUs   *float64 `json:"loop_start_delta_up_us,omitempty"`
	LoopStartDeltaDownUs *float64 `json:"loop_start_delta_down_us,omitempty"`
	TaskGuardMinUs       *float64 `json:"task_guard_min_us,omitempty"`
	TaskGuardMaxUs       *float64 `json:"task_guard_max_us,omitempty"`
	TaskGuardDeltaUpUs   *float64 `json:"task_guard_delta_up_us,omitempty"`
	TaskGuardDeltaDownUs *float64 `json:"task_guard_delta_down_us,omitempty"`
	GuardMarginUs        *float64 `json:"guard_margin_us,omitempty"`

	// Guarded task periods
	TelemetryInterval *string `json:"telemetry_interval,omitempty"` // duration string like "20ms"
	BlackboxInterval  *string `json:"blackbox_interval,omitempty"`  // duration string like "2ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/<tool>/ run via go run .
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTuning, fmt.Sprintf(format, args...))
}

func checkNonNegative(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return invalid("%s must be finite and non-negative, got %v", name, *v)
	}
	return nil
}

func checkDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%w: invalid %s '%s': %w", ErrInvalidTuning, name, *v, err)
	}
	if d <= 0 {
		return invalid("%s must be positive, got %s", name, *v)
	}
	// Intervals are carried as uint32 microseconds.
	if d.Microseconds() > math.MaxUint32 {
		return invalid("%s must be at most %s, got %s", name, maxIntervalUs, *v)
	}
	return nil
}

const maxIntervalUs = time.Duration(math.MaxUint32) * time.Microsecond

// Validate checks the fields that are set. Cross-field checks such as
// min/max ordering are left to PIDConfig and SchedulerConfig, which see the
// defaults as well.
func (c *TuningConfig) Validate() error {
	if c.LoopRateHz != nil && *c.LoopRateHz <= 0 {
		return invalid("loop_rate_hz must be positive, got %v", *c.LoopRateHz)
	}
	if c.ClockRateHz != nil && (*c.ClockRateHz <= 0 || *c.ClockRateHz > math.MaxUint32) {
		return invalid("clock_rate_hz must be in (0, %d], got %d", uint32(math.MaxUint32), *c.ClockRateHz)
	}

	for name, v := range map[string]*float64{
		"rate_p": c.RateP, "rate_i": c.RateI, "rate_d": c.RateD, "rate_f": c.RateF, "level_p": c.LevelP,
		"max_angle_deg": c.MaxAngleDeg, "max_rate_dps": c.MaxRateDps, "max_yaw_rate_dps": c.MaxYawRateDps,
		"dterm_lowpass_hz": c.DtermLowpassHz, "dterm_lowpass2_hz": c.DtermLowpass2Hz,
		"d_min_gain": c.DMinGain, "d_min_range_hz": c.DMinRangeHz, "d_min_lowpass_hz": c.DMinLowpassHz,
		"feedforward_hz": c.FeedforwardHz, "yaw_pterm_hz": c.YawPtermHz, "windup_hz": c.WindupHz,
		"loop_start_min_us": c.LoopStartMinUs, "loop_start_max_us": c.LoopStartMaxUs,
		"loop_start_delta_up_us": c.LoopStartDeltaUpUs, "loop_start_delta_down_us": c.LoopStartDeltaDownUs,
		"task_guard_min_us": c.TaskGuardMinUs, "task_guard_max_us": c.TaskGuardMaxUs,
		"task_guard_delta_up_us": c.TaskGuardDeltaUpUs, "task_guard_delta_down_us": c.TaskGuardDeltaDownUs,
		"guard_margin_us": c.GuardMarginUs,
	} {
		if err := checkNonNegative(name, v); err != nil {
			return err
		}
	}

	if c.OutputLimit != nil && *c.OutputLimit <= 0 {
		return invalid("output_limit must be positive, got %v", *c.OutputLimit)
	}
	if c.DMinRatio != nil && (*c.DMinRatio < 0 || *c.DMinRatio > 1) {
		return invalid("d_min_ratio must be between 0 and 1, got %v", *c.DMinRatio)
	}
	if c.WindupThreshold != nil && (*c.WindupThreshold <= 0 || *c.WindupThreshold > 1) {
		return invalid("windup_threshold must be in (0, 1], got %v", *c.WindupThreshold)
	}
	if c.DynLpfExpo != nil && (*c.DynLpfExpo < 0 || *c.DynLpfExpo > 10) {
		return invalid("dyn_lpf_expo must be between 0 and 10, got %v", *c.DynLpfExpo)
	}
	if c.DynLpfThrottleBuckets != nil && *c.DynLpfThrottleBuckets <= 0 {
		return invalid("dyn_lpf_throttle_buckets must be positive, got %d", *c.DynLpfThrottleBuckets)
	}

	for name, v := range map[string]*string{"dterm_lowpass_type": c.DtermLowpassType, "dterm_lowpass2_type": c.DtermLowpass2Type} {
		if v == nil {
			continue
		}
		if _, err := filter.ParseKind(*v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidTuning, name, err)
		}
	}

	for name, v := range map[string]*string{
		"dyn_lpf_update_interval": c.DynLpfUpdateInterval,
		"telemetry_interval":      c.TelemetryInterval,
		"blackbox_interval":       c.BlackboxInterval,
	} {
		if err := checkDuration(name, v); err != nil {
			return err
		}
	}
	return nil
}

// PIDConfig builds the controller configuration, filling unset fields with
// defaults, and validates the result.
func (c *TuningConfig) PIDConfig() (pid.Config, error) {
	kind1, err := filter.ParseKind(c.GetDtermLowpassType())
	if err != nil {
		return pid.Config{}, fmt.Errorf("%w: dterm_lowpass_type: %w", ErrInvalidTuning, err)
	}
	kind2, err := filter.ParseKind(c.GetDtermLowpass2Type())
	if err != nil {
		return pid.Config{}, fmt.Errorf("%w: dterm_lowpass2_type: %w", ErrInvalidTuning, err)
	}

	cfg := pid.Config{
		LoopRateHz: float32(c.GetLoopRateHz()),

		RateP:  float32(c.GetRateP()),
		RateI:  float32(c.GetRateI()),
		RateD:  float32(c.GetRateD()),
		RateF:  float32(c.GetRateF()),
		LevelP: float32(c.GetLevelP()),

		MaxAngleDeg:   float32(c.GetMaxAngleDeg()),
		MaxRateDps:    float32(c.GetMaxRateDps()),
		MaxYawRateDps: float32(c.GetMaxYawRateDps()),
		OutputLimit:   float32(c.GetOutputLimit()),

		DtermLowpass:  pid.LowpassConfig{Kind: kind1, CutoffHz: float32(c.GetDtermLowpassHz())},
		DtermLowpass2: pid.LowpassConfig{Kind: kind2, CutoffHz: float32(c.GetDtermLowpass2Hz())},
		DynLpf: pid.DynLpfConfig{
			Enabled:          c.GetDynLpfEnabled(),
			MinHz:            float32(c.GetDynLpfMinHz()),
			MaxHz:            float32(c.GetDynLpfMaxHz()),
			Expo:             float32(c.GetDynLpfExpo()),
			UpdateIntervalUs: uint32(c.GetDynLpfUpdateInterval().Microseconds()),
			ThrottleBuckets:  c.GetDynLpfThrottleBuckets(),
		},
		DMin: pid.DMinConfig{
			Enabled:         c.GetDMinEnabled(),
			Ratio:           float32(c.GetDMinRatio()),
			Gain:            float32(c.GetDMinGain()),
			RangeCutoffHz:   float32(c.GetDMinRangeHz()),
			LowpassCutoffHz: float32(c.GetDMinLowpassHz()),
		},

		FeedforwardCutoffHz: float32(c.GetFeedforwardHz()),
		YawPtermCutoffHz:    float32(c.GetYawPtermHz()),
		WindupCutoffHz:      float32(c.GetWindupHz()),
		WindupThreshold:     float32(c.GetWindupThreshold()),

		ResetFeedforwardOnReset: c.GetResetFeedforwardOnReset(),
	}
	if err := cfg.Validate(); err != nil {
		return pid.Config{}, fmt.Errorf("%w: %w", ErrInvalidTuning, err)
	}
	return cfg, nil
}

// SchedulerConfig builds the scheduler configuration, filling unset fields
// with defaults, and validates the result.
func (c *TuningConfig) SchedulerConfig() (scheduler.Config, error) {
	cfg := scheduler.Config{
		ClockRate:  uint32(c.GetClockRateHz()),
		LoopRateHz: c.GetLoopRateHz(),
		LoopStart: scheduler.TrackerConfig{
			MinUs:       float32(c.GetLoopStartMinUs()),
			MaxUs:       float32(c.GetLoopStartMaxUs()),
			DeltaUpUs:   float32(c.GetLoopStartDeltaUpUs()),
			DeltaDownUs: float32(c.GetLoopStartDeltaDownUs()),
		},
		TaskGuard: scheduler.TrackerConfig{
			MinUs:       float32(c.GetTaskGuardMinUs()),
			MaxUs:       float32(c.GetTaskGuardMaxUs()),
			DeltaUpUs:   float32(c.GetTaskGuardDeltaUpUs()),
			DeltaDownUs: float32(c.GetTaskGuardDeltaDownUs()),
		},
		GuardMarginUs: float32(c.GetGuardMarginUs()),
	}
	if err := cfg.Validate(); err != nil {
		return scheduler.Config{}, fmt.Errorf("%w: %w", ErrInvalidTuning, err)
	}
	return cfg, nil
}
