package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modwatch/internal/adapters/segment"
	kit "modwatch/internal/platform/testkit"
)

func newDispatcher(t *testing.T, dir string, lk *fakeLookup) *Dispatcher {
	t.Helper()
	e, _ := newEngine(t, lk, Config{})
	return NewDispatcher(e, DispatcherConfig{Dir: dir, ActiveName: "comments.log", Workers: 2}, nil)
}

func TestDispatcher_EnqueueDedup(t *testing.T) {
	d := newDispatcher(t, t.TempDir(), &fakeLookup{})
	d.Enqueue("/x/comments.log.2024-01-01_00-00-00")
	d.Enqueue("/x/./comments.log.2024-01-01_00-00-00")
	if st := d.Stats(); st.Queued != 1 {
		t.Fatalf("queued = %d, want 1", st.Queued)
	}
}

func TestDispatcher_ReconcileAndDrain(t *testing.T) {
	dir := t.TempDir()
	kit.WriteLines(t, dir, "comments.log", `{"name":"active"}`)
	s1 := kit.WriteLines(t, dir, "comments.log.2024-01-01_00-00-00", `{"name":"t1_a","body":"x"}`)
	s2 := kit.WriteLines(t, dir, "comments.log.2024-01-01_00-01-00", `{"name":"t1_b","body":"y"}`)
	// a crashed run of this same process image left its lock behind
	if _, err := segment.Acquire(segment.PathsFor(s2, ".removed"), "dead-run", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	lk := &fakeLookup{}
	d := newDispatcher(t, dir, lk)
	n, err := d.Reconcile(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("reconcile n=%d err=%v", n, err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	st := d.Stats()
	if st.Processed != 2 || st.Failed != 0 || st.Queued != 0 || len(st.InFlight) != 0 {
		t.Fatalf("stats = %+v", st)
	}
	for _, s := range []string{s1, s2} {
		p := segment.PathsFor(s, ".removed")
		kit.MustNotExist(t, p.Segment)
		kit.MustNotExist(t, p.Lock)
		kit.MustExist(t, p.Archive)
	}
	kit.MustExist(t, filepath.Join(dir, "comments.log"))
	if len(lk.Calls()) != 2 {
		t.Fatalf("calls = %v", lk.Calls())
	}
}

func TestDispatcher_ReconcileNeedsDir(t *testing.T) {
	e, _ := newEngine(t, &fakeLookup{}, Config{})
	d := NewDispatcher(e, DispatcherConfig{}, nil)
	if _, err := d.Reconcile(context.Background()); err == nil {
		t.Fatalf("want error without a directory")
	}
}

func TestDispatcher_RunProcessesEnqueued(t *testing.T) {
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "comments.log.2024-01-01_00-00-00", `{"name":"t1_a","body":"x"}`)
	d := newDispatcher(t, dir, &fakeLookup{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Enqueue(seg)
	deadline := time.Now().Add(5 * time.Second)
	for d.Stats().Processed < 1 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("segment not processed; stats = %+v", d.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
	kit.MustExist(t, segment.PathsFor(seg, ".removed").Archive)
	if st := d.Stats(); st.LastSegment != seg {
		t.Fatalf("last segment = %q", st.LastSegment)
	}
}

func TestDispatcher_HeldClaimIsSkipped(t *testing.T) {
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "comments.log.2024-01-01_00-00-00", `{"name":"t1_a","body":"x"}`)
	c, err := segment.Acquire(segment.PathsFor(seg, ".removed"), "live-peer", time.Now())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() { _ = c.Release() }()

	d := newDispatcher(t, dir, &fakeLookup{})
	d.Enqueue(seg)
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if st := d.Stats(); st.Skipped != 1 || st.Processed != 0 {
		t.Fatalf("stats = %+v", st)
	}
	kit.MustExist(t, seg)
}

func TestDispatcher_ReconcileLeavesLivePeerClaim(t *testing.T) {
	dir := t.TempDir()
	seg := kit.WriteLines(t, dir, "comments.log.2024-01-01_00-00-00", `{"name":"t1_a","body":"x"}`)
	p := segment.PathsFor(seg, ".removed")
	host, _ := os.Hostname()
	body, _ := json.Marshal(segment.ClaimInfo{RunID: "run-a", PID: os.Getppid(), Host: host, ClaimedAt: time.Now()})
	if err := os.WriteFile(p.Lock, body, 0o644); err != nil {
		t.Fatal(err)
	}

	lk := &fakeLookup{}
	d := newDispatcher(t, dir, lk)
	if _, err := d.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if st := d.Stats(); st.Skipped != 1 || st.Processed != 0 {
		t.Fatalf("stats = %+v", st)
	}
	kit.MustExist(t, p.Lock)
	kit.MustExist(t, seg)
	if len(lk.Calls()) != 0 {
		t.Fatalf("a live peer's segment was looked up: %v", lk.Calls())
	}
}

func TestDispatcher_ReconcileArchivesOrphanedRemovedLog(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "comments.log.2024-01-01_00-00-00")
	p := segment.PathsFor(seg, ".removed")
	// archiving stopped after the segment was deleted but before its removed log was
	kit.WriteLines(t, dir, filepath.Base(p.Segment), `{"name":"t1_a","body":"x"}`)
	if err := segment.Compress(p.Segment, p.Archive); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(p.Segment); err != nil {
		t.Fatal(err)
	}
	kit.WriteLines(t, dir, filepath.Base(p.Removed), `{"name":"t1_a","removal_signal":"absent"}`)

	lk := &fakeLookup{}
	d := newDispatcher(t, dir, lk)
	n, err := d.Reconcile(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("reconcile n=%d err=%v", n, err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if st := d.Stats(); st.Processed != 1 || st.Failed != 0 {
		t.Fatalf("stats = %+v", st)
	}
	kit.MustNotExist(t, p.Removed)
	kit.MustExist(t, p.RemovedArchive)
	kit.MustExist(t, p.Archive)
	if len(lk.Calls()) != 0 {
		t.Fatalf("calls = %v", lk.Calls())
	}
}
