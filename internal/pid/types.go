package pid

import "fmt"

// VehicleState is the estimated state vector supplied by the estimator each
// cycle. Angles are in degrees, angular rates in degrees per second.
type VehicleState struct {
	X, DX  float32
	Y, DY  float32
	Z, DZ  float32
	Phi    float32 // roll
	DPhi   float32
	Theta  float32 // pitch
	DTheta float32
	Psi    float32 // yaw
	DPsi   float32
}

// Demands is a normalized command vector. As an input it carries pilot
// sticks (throttle in [0,1], the rest in [-1,1]); as an output it carries
// corrected demands for the mixer.
type Demands struct {
	Throttle float32
	Roll     float32
	Pitch    float32
	Yaw      float32
}

// AxisData holds the last term breakdown of one axis and its running
// integral. P, I, D and F are recomputed every step; Sum persists until a
// reset.
type AxisData struct {
	P, I, D, F float32
	Sum        float32
}

// Axis indexes the rotational axes.
type Axis int

const (
	Roll Axis = iota
	Pitch
	Yaw

	AxisCount = 3
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Yaw:
		return "yaw"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// rates returns the measured angular rates indexed by Axis.
func (s VehicleState) rates() [AxisCount]float32 {
	return [AxisCount]float32{s.DPhi, s.DTheta, s.DPsi}
}
