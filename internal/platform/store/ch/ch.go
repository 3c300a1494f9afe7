// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"strings"
	"time"

	perr "modwatch/internal/platform/errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL  string
	Role string
	App  string

	DialTimeout time.Duration
}

// CH wraps a native driver connection
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and opens a pooled native connection
// It does not ping; callers decide how long to wait for the server
func Open(_ context.Context, cfg Config) (*CH, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, perr.InvalidArgf("clickhouse url is empty")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "clickhouse dsn")
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, cfg.App)
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, perr.Classified(err, "clickhouse open")
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows to table in one native batch
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return perr.Classified(err, "clickhouse prepare "+table)
	}
	for i, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return perr.WithField(perr.Wrapf(err, perr.ErrorCodeEncoding, "clickhouse append %s row %d", table, i), table)
		}
	}
	if err := batch.Send(); err != nil {
		return perr.Classified(err, "clickhouse send "+table)
	}
	return nil
}

// Exec runs a statement without results (DDL, mutations)
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	if err := c.conn.Exec(ctx, sql, args...); err != nil {
		return perr.Classified(err, "clickhouse exec")
	}
	return nil
}

// Query runs a query and returns driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.Classified(err, "clickhouse query")
	}
	return rows, nil
}

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the pool
func (c *CH) Close() error { return c.conn.Close() }
