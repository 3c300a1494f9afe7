package service

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"modwatch/internal/adapters/segment"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
	"modwatch/internal/services/recheck/domain"
	"modwatch/internal/services/recheck/guardrails"
)

// DispatcherConfig holds the worker pool knobs
type DispatcherConfig struct {
	// Dir and ActiveName locate sealed segments for Reconcile
	Dir        string
	ActiveName string
	// Workers is the number of segments processed concurrently; <=0 -> 4
	Workers int
	// SweepEvery reruns Reconcile periodically; 0 disables
	SweepEvery time.Duration
	// ClaimLease lets Reconcile break claims older than this from other hosts; 0 never does
	ClaimLease time.Duration
}

// Dispatcher queues sealed segments and feeds them to engine workers
// At most one worker holds a given segment; the lock file guards across processes
type Dispatcher struct {
	Engine  *Engine
	Cfg     DispatcherConfig
	Metrics *metrics.Metrics

	log logger.Logger

	mu       sync.Mutex
	queue    []string
	queued   map[string]struct{}
	inFlight map[string]struct{}
	wake     chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	lastSeg   atomic.Value
	lastDone  atomic.Int64
}

// NewDispatcher wires a dispatcher around eng
func NewDispatcher(eng *Engine, cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	if eng == nil {
		panic("recheck.Dispatcher requires a non nil Engine")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SweepEvery < 0 {
		cfg.SweepEvery = 0
	}
	if cfg.ClaimLease < 0 {
		cfg.ClaimLease = 0
	}
	return &Dispatcher{
		Engine:   eng,
		Cfg:      cfg,
		Metrics:  metrics.OrNew(m),
		log:      *logger.Named("recheck"),
		queued:   map[string]struct{}{},
		inFlight: map[string]struct{}{},
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds path unless it is already queued or in flight; it never blocks
func (d *Dispatcher) Enqueue(path string) {
	path = filepath.Clean(path)
	d.mu.Lock()
	_, q := d.queued[path]
	_, f := d.inFlight[path]
	if q || f {
		d.mu.Unlock()
		return
	}
	d.queued[path] = struct{}{}
	d.queue = append(d.queue, path)
	d.Metrics.QueueDepth.Set(float64(len(d.queue)))
	d.mu.Unlock()

	d.signal()
	d.log.Debug().Str("segment", path).Msg("segment queued")
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// take pops the next segment that is not already being worked on
func (d *Dispatcher) take() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.queue {
		if _, busy := d.inFlight[p]; busy {
			continue
		}
		d.queue = append(d.queue[:i], d.queue[i+1:]...)
		delete(d.queued, p)
		d.inFlight[p] = struct{}{}
		d.Metrics.QueueDepth.Set(float64(len(d.queue)))
		d.Metrics.InFlight.Set(float64(len(d.inFlight)))
		return p, true
	}
	return "", false
}

func (d *Dispatcher) done(p string) {
	d.mu.Lock()
	delete(d.inFlight, p)
	d.Metrics.InFlight.Set(float64(len(d.inFlight)))
	more := len(d.queue) > 0
	d.mu.Unlock()
	if more {
		d.signal()
	}
}

// Reconcile breaks locks left by dead runs and enqueues every sealed segment still on disk
func (d *Dispatcher) Reconcile(ctx context.Context) (int, error) {
	if d.Cfg.Dir == "" || d.Cfg.ActiveName == "" {
		return 0, perr.InvalidArgf("reconcile needs a log directory and active name")
	}
	rule := segment.StaleRule{Now: d.Engine.clock(), Lease: d.Cfg.ClaimLease}
	broken, err := segment.BreakStale(d.Cfg.Dir, d.Cfg.ActiveName, d.Engine.Cfg.RunID, rule)
	if err != nil {
		return 0, err
	}
	for _, l := range broken {
		d.log.Warn().Str("lock", l).Msg("removed stale segment lock")
	}
	segs, err := segment.Scan(d.Cfg.Dir, d.Cfg.ActiveName)
	if err != nil {
		return 0, err
	}
	orphans, err := segment.Orphans(d.Cfg.Dir, d.Cfg.ActiveName, d.Engine.Cfg.RemovedSuffix)
	if err != nil {
		return 0, err
	}
	for _, s := range segs {
		d.Enqueue(s)
	}
	for _, s := range orphans {
		d.Enqueue(s)
	}
	d.log.Info().
		Str("dir", d.Cfg.Dir).
		Int("segments", len(segs)).
		Int("orphaned_removed_logs", len(orphans)).
		Int("stale_locks", len(broken)).
		Msg("reconcile finished")
	return len(segs) + len(orphans), nil
}

// Run starts the workers and the sweeper and blocks until ctx is canceled
// A segment interrupted by cancellation keeps its files and is picked up again at the next start
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.Cfg.Workers; i++ {
		g.Go(func() error {
			d.worker(gctx, true)
			return nil
		})
	}
	if d.Cfg.SweepEvery > 0 {
		g.Go(func() error {
			d.sweep(gctx)
			return nil
		})
	}
	d.log.Info().Int("workers", d.Cfg.Workers).Dur("sweep_every", d.Cfg.SweepEvery).Msg("recheck dispatcher started")
	err := g.Wait()
	d.log.Info().Int64("processed", d.processed.Load()).Int64("failed", d.failed.Load()).Msg("recheck dispatcher stopped")
	return err
}

// Drain processes everything queued now with the configured workers and returns
func (d *Dispatcher) Drain(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.Cfg.Workers; i++ {
		g.Go(func() error {
			d.worker(gctx, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeCanceled, "drain canceled")
	}
	return nil
}

// worker processes queued segments; when follow is false it returns once the queue is empty
func (d *Dispatcher) worker(ctx context.Context, follow bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		p, ok := d.take()
		if !ok {
			if !follow {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
			}
			continue
		}
		// pass the wake on so idle peers also look at the queue
		d.signal()
		d.process(ctx, p)
		d.done(p)
	}
}

func (d *Dispatcher) process(ctx context.Context, p string) {
	started := time.Now()
	res, err := d.Engine.Process(ctx, p)
	switch {
	case err == nil:
		d.processed.Add(1)
		d.lastSeg.Store(p)
		d.lastDone.Store(time.Now().UnixNano())
		d.log.Info().
			Str("segment", p).
			Int("batches", res.Batches).
			Int("failed_batches", res.Failed).
			Int("records", res.Records).
			Int("malformed", res.Malformed).
			Int("removed", res.Removed).
			Int("absent", res.Absent).
			Bool("archive_only", res.ArchiveOnly).
			Dur("took", time.Since(started)).
			Msg("segment rechecked")
	case errors.Is(err, guardrails.ErrClaimHeld):
		d.skipped.Add(1)
		d.log.Info().Str("segment", p).Str("outcome", "skipped").Msg("segment claimed elsewhere")
	case perr.IsCanceled(err):
		d.log.Info().Str("segment", p).Str("outcome", "resume_next_start").Msg("segment recheck interrupted")
	default:
		d.failed.Add(1)
		d.log.Error().
			Err(err).
			Str("segment", p).
			Str("kind", perr.CodeName(err)).
			Str("type", perr.TypeName(err)).
			Str("outcome", "left_for_sweep").
			Msg("segment recheck failed")
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	t := time.NewTicker(d.Cfg.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := d.Reconcile(ctx); err != nil {
				d.log.Error().
					Err(err).
					Str("kind", perr.CodeName(err)).
					Str("type", perr.TypeName(err)).
					Str("outcome", "retry_next_sweep").
					Msg("sweep failed")
			}
		}
	}
}

// Stats returns a snapshot of the queue and counters
func (d *Dispatcher) Stats() domain.Stats {
	d.mu.Lock()
	st := domain.Stats{Queued: len(d.queue)}
	for p := range d.inFlight {
		st.InFlight = append(st.InFlight, p)
	}
	d.mu.Unlock()
	sort.Strings(st.InFlight)
	st.Processed = d.processed.Load()
	st.Failed = d.failed.Load()
	st.Skipped = d.skipped.Load()
	if v, ok := d.lastSeg.Load().(string); ok {
		st.LastSegment = v
	}
	if v := d.lastDone.Load(); v != 0 {
		st.LastDoneAt = time.Unix(0, v).UTC()
	}
	return st
}
