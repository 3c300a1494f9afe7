// Package domain holds the recheck ports and value types
package domain

import (
	"context"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	// Enqueue schedules a sealed segment; it never blocks
	Enqueue(path string)
	// Reconcile scans the log directory and enqueues unfinished segments
	Reconcile(ctx context.Context) (int, error)
	// Run processes the queue until ctx is canceled
	Run(ctx context.Context) error
	// Drain processes what is queued now and returns
	Drain(ctx context.Context) error
	Stats() Stats
}

// Lookup refetches the current state of up to 100 items by name
type Lookup interface {
	LookupBatch(ctx context.Context, ids []string) (map[string]map[string]any, error)
}

// VerdictSink receives removal verdicts for analytics; optional and best effort
type VerdictSink interface {
	Record(ctx context.Context, rows []VerdictRow) error
}
