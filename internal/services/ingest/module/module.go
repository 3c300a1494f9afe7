// Package module provides the ingest module implementation
package module

import (
	"context"

	"modwatch/internal/adapters/origin/reddit"
	"modwatch/internal/modkit"
	phttp "modwatch/internal/platform/net/http"
	"modwatch/internal/services/ingest/domain"
	"modwatch/internal/services/ingest/service"
)

// Ports defines the ingest module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the ingest module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the ingest module
// The reddit client is built from deps.Cfg (MODWATCH_REDDIT_*); the sink is
// owned by the caller because the recheck side hooks its completion trigger
func New(deps modkit.Deps, sink domain.Sink) *Module {
	return NewWithClient(deps, sink, reddit.NewClient(reddit.FromConfig(deps.Cfg)))
}

// NewWithClient is New with a caller supplied client
// Passing the recheck module's client keeps both sides under one rate budget
func NewWithClient(deps modkit.Deps, sink domain.Sink, client *reddit.Client) *Module {
	if client == nil {
		panic("ingest module requires a non nil reddit client")
	}
	opts := FromConfig(deps.Cfg)

	svc := service.New(
		source{c: client},
		sink,
		service.Config{
			DefaultSleep:   opts.DefaultSleep,
			HeartbeatEvery: int64(opts.HeartbeatEvery),
			RunFor:         opts.RunFor,
		},
		deps.Metrics,
	)

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "ingest" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as ingest has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}

// source narrows the reddit client to the domain Source port
type source struct{ c *reddit.Client }

func (s source) Subscribe(ctx context.Context) (domain.Stream, error) {
	return s.c.Subscribe(ctx)
}
