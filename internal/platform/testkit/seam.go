package testkit

import (
	"sync"
	"testing"
)

var serial sync.Mutex

// Swap replaces *target for the rest of the test; the old value comes back on cleanup
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	prev := *target
	*target = replacement
	t.Cleanup(func() { *target = prev })
}

// Serial holds a process-wide lock until the test ends
// Tests touching package-level seams or the module registry call it first
func Serial(t *testing.T) {
	t.Helper()
	serial.Lock()
	t.Cleanup(serial.Unlock)
}
