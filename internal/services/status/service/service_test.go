package service

import (
	"testing"
	"time"

	"modwatch/internal/adapters/logsink"
	ingest "modwatch/internal/services/ingest/domain"
	recheck "modwatch/internal/services/recheck/domain"
)

func TestSnapshot_CollectsSources(t *testing.T) {
	s := New(Sources{
		Ingest:  func() ingest.Stats { return ingest.Stats{Ingested: 7} },
		Sink:    func() logsink.Stats { return logsink.Stats{Sealed: 2} },
		Recheck: func() recheck.Stats { return recheck.Stats{Queued: 3} },
	}, Config{})
	snap := s.Snapshot()
	if snap.Service != "modwatch" || !snap.Healthy || snap.Build.Version == "" {
		t.Fatalf("snap = %+v", snap)
	}
	if snap.Ingest.Ingested != 7 || snap.Sink.Sealed != 2 || snap.Recheck.Queued != 3 {
		t.Fatalf("sources not collected: %+v", snap)
	}

	empty := New(Sources{}, Config{Name: "recheck", StaleAfter: time.Second}).Snapshot()
	if empty.Ingest != nil || !empty.Healthy || empty.Service != "recheck" {
		t.Fatalf("recheck only snapshot = %+v", empty)
	}
}

func TestHealth_StaleIngest(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Minute)
	s := New(Sources{Ingest: func() ingest.Stats { return ingest.Stats{LastItemAt: last} }}, Config{StaleAfter: 10 * time.Minute})
	s.now = func() time.Time { return now }
	if snap := s.Snapshot(); !snap.Healthy {
		t.Fatalf("fresh ingest reported unhealthy: %s", snap.Reason)
	}

	s.now = func() time.Time { return now.Add(time.Hour) }
	if snap := s.Snapshot(); snap.Healthy || snap.Reason == "" {
		t.Fatalf("stale ingest reported healthy")
	}

	// nothing ingested yet counts from process start
	s = New(Sources{Ingest: func() ingest.Stats { return ingest.Stats{} }}, Config{StaleAfter: time.Minute})
	s.now = func() time.Time { return s.started.Add(2 * time.Minute) }
	if snap := s.Snapshot(); snap.Healthy {
		t.Fatalf("silent ingest should turn unhealthy")
	}
}
