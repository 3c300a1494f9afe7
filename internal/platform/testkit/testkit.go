// Package testkit holds the shared test helpers: panic and output assertions,
// seams, a manual clock and segment file helpers
package testkit

import (
	"fmt"
	"strings"
	"testing"
)

// MustPanic asserts that fn panics and returns the recovered value
func MustPanic(t *testing.T, fn func()) (recovered any) {
	t.Helper()
	defer func() {
		recovered = recover()
		if recovered == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
	return nil
}

// MustPanicWith asserts that fn panics with a value whose text contains substr
func MustPanicWith(t *testing.T, fn func(), substr string) {
	t.Helper()
	got := fmt.Sprint(MustPanic(t, fn))
	if !strings.Contains(got, substr) {
		t.Fatalf("panic %q does not mention %q", got, substr)
	}
}

// MustNotPanic asserts that fn returns normally
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// MustContain asserts that haystack contains needle; long output is cut in the failure message
func MustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		return
	}
	shown := haystack
	if len(shown) > 2048 {
		shown = shown[:2048] + "...(truncated)"
	}
	t.Fatalf("expected output to contain %q\n\noutput:\n%s", needle, shown)
}
