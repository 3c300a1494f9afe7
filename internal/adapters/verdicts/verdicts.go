// Package verdicts writes removal verdicts to ClickHouse for later analysis
package verdicts

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/store"
)

// DefaultTable is used when no table name is configured
const DefaultTable = "removal_verdicts"

var tableRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Row is one verdict as stored
type Row struct {
	RunID     string
	Segment   string
	Name      string
	Subreddit string
	Author    string
	Signal    string
	CreatedAt time.Time
	CheckedAt time.Time
}

// Writer appends verdict rows through the store seam
type Writer struct {
	ch    store.Clickhouse
	table string
}

// New returns a Writer for table; an empty table means DefaultTable
func New(ch store.Clickhouse, table string) (*Writer, error) {
	if ch == nil {
		return nil, perr.InvalidArgf("verdicts: clickhouse is not configured")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableRE.MatchString(table) {
		return nil, perr.WithField(perr.InvalidArgf("verdicts: bad table name %q", table), "table")
	}
	return &Writer{ch: ch, table: table}, nil
}

// Table returns the target table
func (w *Writer) Table() string { return w.table }

// EnsureSchema creates the verdict table when missing
func (w *Writer) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + w.table + ` (
	batch_id   UUID,
	run_id     String,
	segment    String,
	name       String,
	subreddit  LowCardinality(String),
	author     String,
	signal     LowCardinality(String),
	created_at DateTime64(3, 'UTC'),
	checked_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (checked_at, name)`
	return perr.WithOp(w.ch.Exec(ctx, ddl), "verdicts.EnsureSchema")
}

// Record inserts rows as one batch tagged with a fresh batch id
func (w *Writer) Record(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	batch := uuid.New()
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{
			batch,
			r.RunID,
			r.Segment,
			r.Name,
			r.Subreddit,
			r.Author,
			r.Signal,
			r.CreatedAt.UTC(),
			r.CheckedAt.UTC(),
		})
	}
	return perr.WithOp(w.ch.Insert(ctx, w.table, out), "verdicts.Record")
}
