package store

import (
	"context"
	"time"

	perr "modwatch/internal/platform/errors"
	chx "modwatch/internal/platform/store/ch"
)

// sleep is a seam for tests
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// openCH opens clickhouse and publishes it only after a successful ping
func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.Role, App: cfg.AppName})
	if err != nil {
		return nil, err
	}

	attempts := cfg.CH.ConnectRetries
	if attempts <= 0 {
		attempts = 5
	}
	pingTO := cfg.CH.PingTimeout
	if pingTO <= 0 {
		pingTO = 3 * time.Second
	}

	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTO)
		lastErr = c.Ping(toCtx)
		cancel()
		if lastErr == nil {
			return c, nil
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Msg("clickhouse ping failed")
		if err := sleep(ctx, backoff); err != nil {
			_ = c.Close()
			return nil, perr.Wrap(err, perr.ErrorCodeCanceled, "clickhouse connect")
		}
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}
	_ = c.Close()
	return nil, perr.Wrapf(lastErr, perr.ErrorCodeTransientNetwork, "clickhouse ping failed after %d attempts", attempts)
}
