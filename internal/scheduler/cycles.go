package scheduler

// Compare returns a - b as a signed cycle difference. The counter wraps at
// 32 bits, so the result is only meaningful while the two values are less
// than half the counter range apart. A positive result means a is later.
func Compare(a, b uint32) int32 {
	return int32(a - b)
}

// Elapsed returns the cycles from start to end across a wrap.
func Elapsed(start, end uint32) uint32 {
	return end - start
}
