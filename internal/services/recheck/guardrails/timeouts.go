// Package guardrails holds cross cutting safety helpers for recheck
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for one segment.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Lookup caps one batch lookup call, on top of the client's own per call timeout
	Lookup time.Duration

	// Archive caps the compress and delete step
	Archive time.Duration
}

// ForLookup returns a sub context for one lookup bounded by Lookup and any remaining parent budget
func ForLookup(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Lookup)
}

// ForArchive returns a sub context for the archive phase bounded by Archive and any remaining parent budget
func ForArchive(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Archive)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any parent remainder.
// Never extends the parent deadline
// When d is zero it returns a simple cancelable child inheriting the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
