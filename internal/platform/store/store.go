// Package store provides a unified interface to optional storage backends
package store

import (
	"context"

	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
)

// Store holds the optional backends opened for one process
// The zero value is usable and has none
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// CH is the clickhouse seam, nil when disabled
	CH Clickhouse
}

// Clickhouse is the columnar write seam used by the verdict sink
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.CH.Enabled && s.CH == nil {
		chClient, err := openCH(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard pings every configured backend
// A nil Store is an Internal error; backend failures keep their classification
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return perr.Internalf("store: guard on nil store")
	}
	if s.CH == nil {
		return nil
	}
	if err := s.CH.Ping(ctx); err != nil {
		return perr.WithOp(perr.Classified(err, "clickhouse ping"), "store.guard")
	}
	return nil
}

// Close releases the backends; a nil or empty Store closes nothing
func (s *Store) Close(_ context.Context) error {
	if s == nil || s.CH == nil {
		return nil
	}
	if err := s.CH.Close(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "clickhouse close")
	}
	return nil
}
