// Package plant is a rigid-body rotational model used to close the loop
// around the controller in tests and in the simulator. It reports true
// attitude and body rates; there is no sensor fusion.
package plant

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/rotorcore/internal/pid"
	"github.com/banshee-data/rotorcore/internal/units"
)

// ErrInvalidConfig wraps every Config validation failure.
var ErrInvalidConfig = errors.New("plant: invalid config")

// Config describes the airframe response.
type Config struct {
	// Authority is the angular acceleration in deg/s^2 produced by a full
	// demand on each axis, indexed by pid.Axis.
	Authority [pid.AxisCount]float32
	// Drag is the rate damping on each axis in 1/s.
	Drag [pid.AxisCount]float32

	// HoverThrottle is the throttle at which thrust balances gravity.
	HoverThrottle float32
	Gravity       float32
	VerticalDrag  float32

	// GyroNoiseDps is the amplitude of uniform noise added to reported
	// rates. Zero reports exact rates.
	GyroNoiseDps float32
	Seed         uint64
}

// DefaultConfig returns a responsive 5-inch class airframe.
func DefaultConfig() Config {
	return Config{
		Authority:     [pid.AxisCount]float32{4000, 4000, 1500},
		Drag:          [pid.AxisCount]float32{2, 2, 4},
		HoverThrottle: 0.35,
		Gravity:       9.80665,
		VerticalDrag:  0.5,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	for i := range c.Authority {
		if c.Authority[i] <= 0 {
			return fmt.Errorf("%w: %v authority must be positive", ErrInvalidConfig, pid.Axis(i))
		}
		if c.Drag[i] < 0 {
			return fmt.Errorf("%w: %v drag must be non-negative", ErrInvalidConfig, pid.Axis(i))
		}
	}
	if c.HoverThrottle <= 0 || c.HoverThrottle > 1 {
		return fmt.Errorf("%w: hover throttle must be in (0,1], got %v", ErrInvalidConfig, c.HoverThrottle)
	}
	if c.GyroNoiseDps < 0 {
		return fmt.Errorf("%w: gyro noise must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Model integrates the airframe with semi-implicit Euler steps.
type Model struct {
	cfg   Config
	state pid.VehicleState
	rng   *rand.Rand
}

// New returns a model at rest, level, on the ground.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
	}, nil
}

// Step advances the model by dt seconds under the given demands.
func (m *Model) Step(dt float32, d pid.Demands) {
	s := &m.state
	demand := [pid.AxisCount]float32{
		units.Clamp(d.Roll, -1, 1),
		units.Clamp(d.Pitch, -1, 1),
		units.Clamp(d.Yaw, -1, 1),
	}
	rates := [pid.AxisCount]*float32{&s.DPhi, &s.DTheta, &s.DPsi}
	angles := [pid.AxisCount]*float32{&s.Phi, &s.Theta, &s.Psi}
	for i := range demand {
		acc := m.cfg.Authority[i]*demand[i] - m.cfg.Drag[i]*(*rates[i])
		*rates[i] += acc * dt
		*angles[i] += *rates[i] * dt
	}
	s.Psi = wrapDegrees(s.Psi)

	// Vertical: thrust scales with throttle, the ground stops descent.
	throttle := units.Clamp(d.Throttle, 0, 1)
	az := m.cfg.Gravity*(throttle/m.cfg.HoverThrottle-1) - m.cfg.VerticalDrag*s.DZ
	s.DZ += az * dt
	s.Z += s.DZ * dt
	if s.Z < 0 {
		s.Z, s.DZ = 0, 0
	}
}

// Truth returns the exact state.
func (m *Model) Truth() pid.VehicleState { return m.state }

// State returns the state as a gyro would report it.
func (m *Model) State() pid.VehicleState {
	s := m.state
	if n := m.cfg.GyroNoiseDps; n > 0 {
		s.DPhi += m.noise(n)
		s.DTheta += m.noise(n)
		s.DPsi += m.noise(n)
	}
	return s
}

// Reset puts the model back at rest.
func (m *Model) Reset() { m.state = pid.VehicleState{} }

func (m *Model) noise(amp float32) float32 {
	return float32(m.rng.Float64()*2-1) * amp
}

// wrapDegrees maps an angle to [-180, 180).
func wrapDegrees(a float32) float32 {
	w := float32(math.Mod(float64(a)+180, 360))
	if w < 0 {
		w += 360
	}
	return w - 180
}
