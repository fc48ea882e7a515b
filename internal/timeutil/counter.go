package timeutil

import (
	"math/bits"
	"sync"
	"time"
)

// CycleCounter is a free-running 32-bit cycle counter. Values wrap; callers
// compare them with wrapping arithmetic only.
type CycleCounter interface {
	// Cycles returns the current counter value.
	Cycles() uint32

	// ClockRate returns the counter frequency in Hz.
	ClockRate() uint32
}

// Waiter is implemented by counters that can block until roughly n cycles
// have elapsed. The dispatcher uses it to idle before a deadline.
type Waiter interface {
	WaitCycles(n uint32)
}

// ClockCounter derives a cycle count from a Clock.
type ClockCounter struct {
	clock Clock
	rate  uint32
	start time.Time
}

// NewClockCounter returns a counter ticking at rateHz, starting at zero now.
func NewClockCounter(clock Clock, rateHz uint32) *ClockCounter {
	return &ClockCounter{clock: clock, rate: rateHz, start: clock.Now()}
}

// Cycles returns the elapsed cycles since construction, truncated to 32 bits.
func (c *ClockCounter) Cycles() uint32 {
	ns := uint64(c.clock.Since(c.start).Nanoseconds())
	hi, lo := bits.Mul64(ns, uint64(c.rate))
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return uint32(q)
}

// ClockRate returns the counter frequency in Hz.
func (c *ClockCounter) ClockRate() uint32 { return c.rate }

// WaitCycles sleeps for n cycles worth of wall time.
func (c *ClockCounter) WaitCycles(n uint32) {
	if n == 0 || c.rate == 0 {
		return
	}
	c.clock.Sleep(time.Duration(uint64(n) * uint64(time.Second) / uint64(c.rate)))
}

// MockCounter is a manually advanced cycle counter for tests and simulation.
type MockCounter struct {
	mu     sync.Mutex
	cycles uint32
	rate   uint32
	waits  int
}

// NewMockCounter returns a counter at start ticking at rateHz.
func NewMockCounter(rateHz, start uint32) *MockCounter {
	return &MockCounter{cycles: start, rate: rateHz}
}

// Cycles returns the current counter value.
func (m *MockCounter) Cycles() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// ClockRate returns the counter frequency in Hz.
func (m *MockCounter) ClockRate() uint32 { return m.rate }

// Advance adds n cycles, wrapping at 32 bits.
func (m *MockCounter) Advance(n uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles += n
}

// Set moves the counter to an absolute value.
func (m *MockCounter) Set(v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = v
}

// WaitCycles advances the counter by n; simulated time passes instantly.
func (m *MockCounter) WaitCycles(n uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles += n
	m.waits++
}

// Waits returns how many times WaitCycles was called.
func (m *MockCounter) Waits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waits
}
