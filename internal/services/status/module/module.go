// Package module mounts /healthz, /status and /metrics
package module

import (
	"net/http"

	"modwatch/internal/modkit"
	"modwatch/internal/platform/metrics"
	"modwatch/internal/platform/net/middleware"
	phttp "modwatch/internal/platform/net/http"
	"modwatch/internal/services/status/service"
)

// StatusPort reads the current snapshot
type StatusPort interface {
	Snapshot() service.Snapshot
}

// Ports defines the status module ports
type Ports struct {
	Status StatusPort
}

// Module implements the status module
type Module struct {
	deps  modkit.Deps
	opts  Options
	built modkit.Built
	svc   *service.Service
}

// New constructs the status module over the given sources
func New(deps modkit.Deps, src service.Sources, opts ...modkit.Option) *Module {
	o := FromConfig(deps.Cfg)
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("status"),
		modkit.WithMiddlewares(middleware.Defaults(middleware.AccessLogOptions{
			Quiet: []string{"/metrics", "/healthz"},
		})...),
	}, opts...)...)
	return &Module{
		deps:  deps,
		opts:  o,
		built: b,
		svc:   service.New(src, service.Config{Name: b.Name, StaleAfter: o.StaleAfter}),
	}
}

// Name returns the module name
func (m *Module) Name() string { return "status" }

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Status: m.svc} }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// MountRoutes mounts the status endpoints
func (m *Module) MountRoutes(r phttp.Router) {
	mount := func(rr phttp.Router) {
		for _, mw := range m.built.Mw {
			rr.Use(mw)
		}
		rr.Get("/healthz", phttp.Handle(m.healthz))
		phttp.GetJSON(rr, "/status", func(*http.Request) (any, error) {
			return m.svc.Snapshot(), nil
		})
		rr.Handle("/metrics", metrics.OrNew(m.deps.Metrics).Handler())
		phttp.MountProfiler(rr, "/debug", m.opts.Pprof)
		m.built.Register(rr)
	}
	if m.built.Prefix == "" {
		r.Group(mount)
		return
	}
	r.Route(m.built.Prefix, mount)
}

type health struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (m *Module) healthz(*http.Request) phttp.Response {
	snap := m.svc.Snapshot()
	h := health{OK: snap.Healthy, Reason: snap.Reason}
	if !h.OK {
		return phttp.Unavailable(h)
	}
	return phttp.OK(h)
}
