package module

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"modwatch/internal/adapters/origin/reddit"
	"modwatch/internal/modkit"
	modmod "modwatch/internal/modkit/module"
	"modwatch/internal/platform/config"
	"modwatch/internal/platform/metrics"
	kit "modwatch/internal/platform/testkit"
	"modwatch/internal/services/ingest/domain"
)

type nopSink struct{}

func (nopSink) Write([]byte) error { return nil }

func TestNew_ExposesRunner(t *testing.T) {
	m := New(modkit.Deps{Cfg: config.New(), Metrics: metrics.New()}, nopSink{})
	if m.Name() != "ingest" {
		t.Fatalf("name = %q", m.Name())
	}
	r := modmod.MustPortsOf[domain.RunnerPort](m)
	if r == nil {
		t.Fatalf("runner port missing")
	}
	if st := r.Stats(); st.Ingested != 0 {
		t.Fatalf("fresh stats = %+v", st)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("MODWATCH_SLEEP", "5")
	t.Setenv("MODWATCH_RUN_FOR", "2h")
	o := FromConfig(config.New())
	if o.DefaultSleep != 5*time.Second || o.RunFor != 2*time.Hour || o.HeartbeatEvery != 1000 {
		t.Fatalf("options = %+v", o)
	}
	t.Setenv("MODWATCH_HEARTBEAT_EVERY", "0")
	kit.MustPanic(t, func() { _ = FromConfig(config.New()) })
}

func TestNewWithClient_SharesRateBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"Listing","data":{"children":[]}}`))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("MODWATCH_SLEEP", "1h")

	client := reddit.NewClient(reddit.Options{BaseURL: srv.URL, RPS: 0.1, Burst: 1})
	// a lookup spends the only token in the bucket
	if _, err := client.LookupBatch(context.Background(), []string{"t1_a"}); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	m := NewWithClient(modkit.Deps{Cfg: config.New(), Metrics: metrics.New()}, nopSink{}, client)
	r := modmod.MustPortsOf[domain.RunnerPort](m)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	if n := hits.Load(); n != 1 {
		t.Fatalf("requests = %d, ingest should have waited on the shared limiter", n)
	}
	kit.MustPanic(t, func() { _ = NewWithClient(modkit.Deps{Cfg: config.New()}, nopSink{}, nil) })
}
