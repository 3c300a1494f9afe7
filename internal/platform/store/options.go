package store

import (
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used for connect retries
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithClickhouse installs an already opened seam; Open then skips dialing
func WithClickhouse(c Clickhouse) Option {
	return func(s *Store) error {
		if c == nil {
			return perr.InvalidArgf("store: nil clickhouse seam")
		}
		s.CH = c
		return nil
	}
}
