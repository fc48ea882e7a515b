// Package units provides shared angle, rate and timing conversions used by
// the control core and the tools around it.
package units

import "math"

// Angular rate unit names accepted by the reporting tools.
const (
	DPS  = "dps"  // degrees per second
	RADS = "rads" // radians per second
	RPM  = "rpm"  // revolutions per minute
)

// ValidRateUnits contains all valid rate unit values
var ValidRateUnits = []string{DPS, RADS, RPM}

// IsValidRateUnit checks if the given unit is in the list of valid rate units
func IsValidRateUnit(unit string) bool {
	for _, validUnit := range ValidRateUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertRate converts an angular rate from degrees per second to the target
// units. The control core works in degrees per second throughout.
func ConvertRate(rateDPS float64, targetUnits string) float64 {
	switch targetUnits {
	case RADS:
		return DegToRad(rateDPS)
	case RPM:
		return rateDPS / 6
	default:
		return rateDPS
	}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
