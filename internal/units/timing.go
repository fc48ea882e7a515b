package units

import "math"

// MicrosToSeconds converts an elapsed time in microseconds to seconds.
func MicrosToSeconds(us uint32) float32 {
	return float32(us) * 1e-6
}

// CyclesToMicros converts a cycle count at clockRate (cycles per second) to
// microseconds, truncating.
func CyclesToMicros(cycles, clockRate uint32) uint32 {
	if clockRate == 0 {
		return 0
	}
	return uint32(uint64(cycles) * 1_000_000 / uint64(clockRate))
}

// MicrosToCycles converts microseconds to cycles at clockRate, saturating at
// the largest uint32.
func MicrosToCycles(us, clockRate uint32) uint32 {
	return uint32(min(uint64(us)*uint64(clockRate)/1_000_000, math.MaxUint32))
}

// PeriodCycles returns the number of cycles in one period of a loop running
// at loopHz, or 0 when loopHz is not positive.
func PeriodCycles(clockRate uint32, loopHz float64) uint32 {
	if loopHz <= 0 {
		return 0
	}
	return uint32(float64(clockRate)/loopHz + 0.5)
}
