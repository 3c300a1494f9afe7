package module

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"modwatch/internal/modkit"
	modmod "modwatch/internal/modkit/module"
	"modwatch/internal/platform/config"
	"modwatch/internal/platform/metrics"
	phttp "modwatch/internal/platform/net/http"
	ingest "modwatch/internal/services/ingest/domain"
	recheck "modwatch/internal/services/recheck/domain"
	"modwatch/internal/services/status/service"
)

func mount(t *testing.T, src service.Sources) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	mod := New(modkit.Deps{Cfg: config.New(), Metrics: m}, src)
	r := phttp.AdaptChi(chi.NewRouter())
	mod.MountRoutes(r)
	return r.Mux(), m
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusEndpoints(t *testing.T) {
	h, m := mount(t, service.Sources{
		Ingest:  func() ingest.Stats { return ingest.Stats{Ingested: 5, LastItemAt: time.Now()} },
		Recheck: func() recheck.Stats { return recheck.Stats{Queued: 1, InFlight: []string{"seg"}} },
	})
	m.Ingested.Add(5)

	rec := get(h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = get(h, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		Data service.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Ingest == nil || env.Data.Ingest.Ingested != 5 || env.Data.Recheck.Queued != 1 {
		t.Fatalf("snapshot = %+v", env.Data)
	}

	rec = get(h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "modwatch_ingested_total 5") {
		t.Fatalf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}

	if rec := get(h, "/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof should be off by default, got %d", rec.Code)
	}
}

func TestHealthz_Unhealthy(t *testing.T) {
	t.Setenv("MODWATCH_STATUS_STALE_AFTER", "1s")
	h, _ := mount(t, service.Sources{
		Ingest: func() ingest.Stats { return ingest.Stats{LastItemAt: time.Now().Add(-time.Hour)} },
	})
	rec := get(h, "/healthz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "no items ingested") {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestOptionsAndPorts(t *testing.T) {
	t.Setenv("MODWATCH_STATUS_ADDR", "off")
	mod := New(modkit.Deps{Cfg: config.New()}, service.Sources{})
	if mod.Options().Addr != "" {
		t.Fatalf("addr = %q", mod.Options().Addr)
	}
	if p := modmod.MustPortsOf[StatusPort](mod); !p.Snapshot().Healthy {
		t.Fatalf("empty snapshot should be healthy")
	}

	t.Setenv("MODWATCH_STATUS_ADDR", "9999")
	if FromConfig(config.New()).Addr != ":9999" {
		t.Fatalf("bare port should become :port")
	}
}
