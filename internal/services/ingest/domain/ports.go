// Package domain holds the ingest ports and value types
package domain

import (
	"context"
	"time"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context) error
	Stats() Stats
}

// Source opens a live stream of new raw items
type Source interface {
	Subscribe(ctx context.Context) (Stream, error)
}

// Stream yields raw items until it fails or is closed
type Stream interface {
	Next(ctx context.Context) (map[string]any, error)
	Close() error
}

// Sink takes one serialized line per item
type Sink interface {
	Write(line []byte) error
}

// Stats is a snapshot of ingest counters
type Stats struct {
	Ingested     int64     `json:"ingested"`
	Errors       int64     `json:"errors"`
	Resubscribes int64     `json:"resubscribes"`
	StartedAt    time.Time `json:"started_at"`
	LastItemAt   time.Time `json:"last_item_at"`
}
