package http

import (
	"context"
	"encoding/json"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	perr "modwatch/internal/platform/errors"
)

func serve(t *testing.T, h stdhttp.Handler, path string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	var env Envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestAdaptChi_GroupRouteAndMiddleware(t *testing.T) {
	m := chi.NewRouter()
	r := AdaptChi(m)
	r.Use(func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
			w.Header().Set("X-Root", "1")
			next.ServeHTTP(w, req)
		})
	})
	r.Group(func(g Router) {
		if g.Mux() == nil {
			t.Fatalf("group mux is nil")
		}
		g.Get("/g", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { w.WriteHeader(204) })
	})
	r.Route("/api", func(sr Router) {
		sr.Get("/ping", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { w.WriteHeader(202) })
	})

	if rec, _ := serve(t, r.Mux(), "/g"); rec.Code != 204 || rec.Header().Get("X-Root") != "1" {
		t.Fatalf("group route: %d %v", rec.Code, rec.Header())
	}
	if rec, _ := serve(t, r.Mux(), "/api/ping"); rec.Code != 202 {
		t.Fatalf("sub route: %d", rec.Code)
	}
}

func TestGetJSON_Envelope(t *testing.T) {
	r := AdaptChi(chi.NewRouter())
	GetJSON(r, "/ok", func(*stdhttp.Request) (any, error) { return map[string]int{"n": 1}, nil })
	GetJSON(r, "/missing", func(*stdhttp.Request) (any, error) { return nil, perr.NotFoundf("no such segment") })
	GetJSON(r, "/down", func(*stdhttp.Request) (any, error) { return nil, perr.TransientServicef("origin 503") })

	rec, env := serve(t, r.Mux(), "/ok")
	if rec.Code != 200 || env.StatusCode != 200 || env.Data == nil {
		t.Fatalf("ok: %d %+v", rec.Code, env)
	}
	rec, env = serve(t, r.Mux(), "/missing")
	if rec.Code != 404 || env.Code != "not_found" || env.Error == "" {
		t.Fatalf("missing: %d %+v", rec.Code, env)
	}
	if rec, _ = serve(t, r.Mux(), "/down"); rec.Code != 503 {
		t.Fatalf("down: %d", rec.Code)
	}
}

func TestMountProfiler(t *testing.T) {
	r := AdaptChi(chi.NewRouter())
	MountProfiler(r, "/debug", true)
	if rec, _ := serve(t, r.Mux(), "/debug/pprof/cmdline"); rec.Code != 200 {
		t.Fatalf("pprof cmdline: %d", rec.Code)
	}

	off := AdaptChi(chi.NewRouter())
	MountProfiler(off, "/debug", false)
	if rec, _ := serve(t, off.Mux(), "/debug/pprof/"); rec.Code != 404 {
		t.Fatalf("disabled profiler: %d", rec.Code)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := NewServer(ServerOptions{Addr: "127.0.0.1:0"}, func(m *chi.Mux) {
		m.Get("/ping", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { _, _ = w.Write([]byte("pong")) })
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := stdhttp.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
