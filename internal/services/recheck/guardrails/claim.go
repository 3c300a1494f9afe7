package guardrails

import (
	"context"
	"time"

	"modwatch/internal/adapters/segment"
	"modwatch/internal/platform/logger"
)

// ErrClaimHeld signals another worker owns the segment already
var ErrClaimHeld = segment.ErrClaimHeld

// MakeFileClaim returns a function that takes the segment lock file for
// runID, runs do and releases the lock afterwards, even when do fails.
// If the lock already exists it returns ErrClaimHeld without running do.
// Locks left by a crashed run are cleared by segment.BreakStale at reconcile
func MakeFileClaim(
	runID string,
	now func() time.Time,
) func(ctx context.Context, p segment.Paths, do func(context.Context) error) error {
	return func(ctx context.Context, p segment.Paths, do func(context.Context) error) error {
		c, err := segment.Acquire(p, runID, now())
		if err != nil {
			return err
		}
		defer func() {
			if rerr := c.Release(); rerr != nil {
				logger.C(ctx).Error().Err(rerr).Str("lock", p.Lock).Msg("release claim failed")
			}
		}()
		return do(ctx)
	}
}
