package pid

import (
	"fmt"
	"math"
)

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// assertFinite panics on NaN or Inf in builds tagged rotorcore_debug. Such
// values come from upstream contract violations and are not filtered here.
func assertFinite(name string, v float32) {
	if debugAssertions && !isFinite(v) {
		panic(fmt.Sprintf("pid: non-finite %s: %v", name, v))
	}
}
