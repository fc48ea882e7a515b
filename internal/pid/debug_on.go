//go:build rotorcore_debug

package pid

const debugAssertions = true
