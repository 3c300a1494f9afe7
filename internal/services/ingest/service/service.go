// Package service provides the stream ingest loop
package service

import (
	"context"
	"sync/atomic"
	"time"

	"modwatch/internal/core/entity"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
	tim "modwatch/internal/platform/time"
	"modwatch/internal/services/ingest/domain"
)

// Config holds the loop knobs
type Config struct {
	// DefaultSleep is the pause before re-subscribing after a stream failure
	DefaultSleep time.Duration
	// HeartbeatEvery logs progress every N items; <=0 -> 1000
	HeartbeatEvery int64
	// RunFor stops pulling new items once elapsed; 0 runs until canceled
	RunFor time.Duration
}

// Service drains the source into the sink
type Service struct {
	Source  domain.Source
	Sink    domain.Sink
	Cfg     Config
	Metrics *metrics.Metrics

	log   logger.Logger
	now   func() time.Time
	sleep tim.SleepFunc

	ingested     atomic.Int64
	errors       atomic.Int64
	resubscribes atomic.Int64
	startedAt    atomic.Int64
	lastItemAt   atomic.Int64
}

// New constructs the ingest service
func New(src domain.Source, sink domain.Sink, cfg Config, m *metrics.Metrics) *Service {
	if src == nil {
		panic("ingest.Service requires a non nil Source")
	}
	if sink == nil {
		panic("ingest.Service requires a non nil Sink")
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 1000
	}
	if cfg.DefaultSleep < 0 {
		cfg.DefaultSleep = 0
	}
	return &Service{
		Source:  src,
		Sink:    sink,
		Cfg:     cfg,
		Metrics: metrics.OrNew(m),
		log:     *logger.Named("ingest"),
		now:     time.Now,
		sleep:   tim.Sleep,
	}
}

// Run pulls items until ctx is canceled or RunFor elapses
// Stream failures never end the loop; it sleeps and subscribes again
func (s *Service) Run(ctx context.Context) error {
	started := s.now()
	s.startedAt.Store(started.UnixNano())
	var deadline time.Time
	if s.Cfg.RunFor > 0 {
		deadline = started.Add(s.Cfg.RunFor)
	}
	s.log.Info().
		Time("started_at", started).
		Dur("run_for", s.Cfg.RunFor).
		Msg("ingest started")

	for {
		if s.stopping(ctx, deadline) {
			return s.finish()
		}
		stream, err := s.Source.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish()
			}
			s.streamFailure(err, "subscribe")
			if !s.pause(ctx, deadline) {
				return s.finish()
			}
			continue
		}

		err = s.drain(ctx, stream, deadline)
		if cerr := stream.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("stream close failed")
		}
		if err == nil {
			return s.finish()
		}
		s.streamFailure(err, "next")
		if !s.pause(ctx, deadline) {
			return s.finish()
		}
	}
}

// drain returns nil on a clean stop and the stream error otherwise
func (s *Service) drain(ctx context.Context, stream domain.Stream, deadline time.Time) error {
	fetchCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, deadline.Sub(s.now()))
		defer cancel()
	}
	for {
		if s.stopping(ctx, deadline) {
			return nil
		}
		item, err := stream.Next(fetchCtx)
		if err != nil {
			if fetchCtx.Err() != nil || s.stopping(ctx, deadline) {
				return nil
			}
			return err
		}
		// the item is already pulled, so it is written even if we are stopping
		s.handle(item)
	}
}

func (s *Service) handle(item map[string]any) {
	e := entity.Canonicalize(item)
	if e.Name == "" {
		s.itemFailure("", perr.WithField(perr.Parsef("item has no name"), entity.FieldName))
		return
	}
	line, err := entity.Serialize(e)
	if err != nil {
		s.itemFailure(e.Name, err)
		return
	}
	if err := s.Sink.Write(line); err != nil {
		s.itemFailure(e.Name, err)
		return
	}
	n := s.ingested.Add(1)
	s.lastItemAt.Store(s.now().UnixNano())
	s.Metrics.Ingested.Inc()
	if n%s.Cfg.HeartbeatEvery == 0 {
		s.heartbeat(n)
	}
}

func (s *Service) heartbeat(n int64) {
	started := time.Unix(0, s.startedAt.Load()).UTC()
	elapsed := s.now().Sub(started)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(n) / elapsed.Seconds()
	}
	s.log.Info().
		Int64("ingested", n).
		Time("started_at", started).
		Dur("elapsed", elapsed).
		Float64("per_sec", rate).
		Msg("ingest heartbeat")
}

func (s *Service) itemFailure(name string, err error) {
	s.errors.Add(1)
	s.Metrics.IngestErrors.WithLabelValues(perr.CodeName(err)).Inc()
	s.log.Error().
		Err(err).
		Str("name", name).
		Str("kind", perr.CodeName(err)).
		Str("type", perr.TypeName(err)).
		Str("outcome", "skipped").
		Msg("ingest item failed")
}

func (s *Service) streamFailure(err error, op string) {
	s.errors.Add(1)
	s.resubscribes.Add(1)
	s.Metrics.IngestErrors.WithLabelValues(perr.CodeName(err)).Inc()
	s.Metrics.Resubscribes.Inc()
	s.log.Error().
		Err(err).
		Str("op", op).
		Str("kind", perr.CodeName(err)).
		Str("type", perr.TypeName(err)).
		Dur("retry_in", s.Cfg.DefaultSleep).
		Str("outcome", "resubscribe").
		Msg("ingest stream failed")
}

// pause sleeps DefaultSleep, cut short by the RunFor deadline
// It reports false when the loop should stop
func (s *Service) pause(ctx context.Context, deadline time.Time) bool {
	d := s.Cfg.DefaultSleep
	if !deadline.IsZero() {
		if left := deadline.Sub(s.now()); left < d {
			d = left
		}
	}
	if err := s.sleep(ctx, d); err != nil {
		return false
	}
	return !s.stopping(ctx, deadline)
}

func (s *Service) stopping(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && !s.now().Before(deadline)
}

func (s *Service) finish() error {
	st := s.Stats()
	s.log.Info().
		Int64("ingested", st.Ingested).
		Int64("errors", st.Errors).
		Int64("resubscribes", st.Resubscribes).
		Msg("ingest stopped")
	return nil
}

// Stats returns a snapshot of the counters
func (s *Service) Stats() domain.Stats {
	st := domain.Stats{
		Ingested:     s.ingested.Load(),
		Errors:       s.errors.Load(),
		Resubscribes: s.resubscribes.Load(),
	}
	if v := s.startedAt.Load(); v != 0 {
		st.StartedAt = time.Unix(0, v).UTC()
	}
	if v := s.lastItemAt.Load(); v != 0 {
		st.LastItemAt = time.Unix(0, v).UTC()
	}
	return st
}
