// Package module provides the recheck module implementation
package module

import (
	"context"

	"modwatch/internal/adapters/origin/reddit"
	"modwatch/internal/adapters/verdicts"
	"modwatch/internal/modkit"
	phttp "modwatch/internal/platform/net/http"
	"modwatch/internal/services/recheck/domain"
	"modwatch/internal/services/recheck/guardrails"
	"modwatch/internal/services/recheck/service"
)

// Ports defines the recheck module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the recheck module
type Module struct {
	deps   modkit.Deps
	opts   Options
	ports  Ports
	writer *verdicts.Writer
	engine *service.Engine
	runner *service.Dispatcher
}

// New constructs the recheck module
// The lookup client comes from deps.Cfg (MODWATCH_REDDIT_*); verdicts go to
// ClickHouse only when deps.CH is set
func New(deps modkit.Deps) *Module {
	return NewWithLookup(deps, reddit.NewClient(reddit.FromConfig(deps.Cfg)))
}

// NewWithLookup is New with an explicit lookup port
func NewWithLookup(deps modkit.Deps, lookup domain.Lookup) *Module {
	opts := FromConfig(deps.Cfg)
	m := &Module{deps: deps, opts: opts}

	var sink domain.VerdictSink
	if deps.CH != nil {
		w, err := verdicts.New(deps.CH, opts.VerdictTable)
		if err != nil {
			panic(err)
		}
		m.writer = w
		sink = verdictSink{w: w}
	}

	m.engine = service.NewEngine(lookup, sink, service.Config{
		BatchSize:        opts.BatchSize,
		Dwell:            opts.Dwell,
		WaitSlice:        opts.WaitSlice,
		DefaultSleep:     opts.DefaultSleep,
		MaxFetchAttempts: opts.MaxAttempts,
		RemovedSuffix:    opts.RemovedSuffix,
		Timeouts:         guardrails.Timeouts{Lookup: opts.LookupTimeout},
	}, deps.Metrics)

	m.runner = service.NewDispatcher(m.engine, service.DispatcherConfig{
		Dir:        opts.LogDir,
		ActiveName: opts.LogName,
		Workers:    opts.Workers,
		SweepEvery: opts.SweepEvery,
		ClaimLease: opts.ClaimLease,
	}, deps.Metrics)

	m.ports = Ports{Runner: m.runner}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "recheck" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as recheck has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Engine exposes the single segment engine for one-shot runs
func (m *Module) Engine() *service.Engine { return m.engine }

// Prepare creates the verdict table when a ClickHouse sink is configured
func (m *Module) Prepare(ctx context.Context) error {
	if m.writer == nil {
		return nil
	}
	return m.writer.EnsureSchema(ctx)
}

// verdictSink adapts the ClickHouse writer to the domain port
type verdictSink struct{ w *verdicts.Writer }

func (v verdictSink) Record(ctx context.Context, rows []domain.VerdictRow) error {
	out := make([]verdicts.Row, len(rows))
	for i, r := range rows {
		out[i] = verdicts.Row{
			RunID:     r.RunID,
			Segment:   r.Segment,
			Name:      r.Name,
			Subreddit: r.Subreddit,
			Author:    r.Author,
			Signal:    r.Signal,
			CreatedAt: r.CreatedAt,
			CheckedAt: r.CheckedAt,
		}
	}
	return v.w.Record(ctx, out)
}
