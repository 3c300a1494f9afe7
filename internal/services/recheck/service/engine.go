// Package service runs the delayed recheck of sealed segments
package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"modwatch/internal/adapters/segment"
	"modwatch/internal/core/entity"
	"modwatch/internal/core/verdict"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
	tim "modwatch/internal/platform/time"
	"modwatch/internal/services/recheck/domain"
	"modwatch/internal/services/recheck/guardrails"
)

// SignalKey is the extra field added to every removed log line
const SignalKey = "removal_signal"

// MaxBatchSize is the lookup limit of the origin
const MaxBatchSize = 100

// Config holds the engine knobs
type Config struct {
	// BatchSize is the number of distinct records per lookup; <=0 or >100 -> 100
	BatchSize int
	// Dwell is how long after creation an item is rechecked
	Dwell time.Duration
	// WaitSlice caps a single eligibility sleep; <=0 -> 1m
	WaitSlice time.Duration
	// DefaultSleep is the pause between lookup attempts
	DefaultSleep time.Duration
	// MaxFetchAttempts bounds lookups per batch; <=0 -> 5
	MaxFetchAttempts int
	// RemovedSuffix names the removed log next to the segment; "" -> ".removed"
	RemovedSuffix string
	// Timeouts are optional extra budgets
	Timeouts guardrails.Timeouts
	// RunID owns the segment locks; "" -> random
	RunID string
	// MaxLineBytes skips longer segment lines as malformed; <=0 -> 32MiB
	MaxLineBytes int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.WaitSlice <= 0 {
		c.WaitSlice = time.Minute
	}
	if c.MaxFetchAttempts <= 0 {
		c.MaxFetchAttempts = 5
	}
	if c.DefaultSleep < 0 {
		c.DefaultSleep = 0
	}
	if c.RemovedSuffix == "" {
		c.RemovedSuffix = ".removed"
	}
	if c.RunID == "" {
		c.RunID = segment.NewRunID()
	}
	return c
}

type claimFunc func(ctx context.Context, p segment.Paths, do func(context.Context) error) error

// Engine rechecks one segment at a time; it is safe for concurrent use on different segments
type Engine struct {
	Lookup   domain.Lookup
	Verdicts domain.VerdictSink
	Cfg      Config
	Metrics  *metrics.Metrics

	now   func() time.Time
	sleep tim.SleepFunc
	claim claimFunc
}

// NewEngine constructs an Engine; verdicts may be nil
func NewEngine(lookup domain.Lookup, verdicts domain.VerdictSink, cfg Config, m *metrics.Metrics) *Engine {
	if lookup == nil {
		panic("recheck.Engine requires a non nil Lookup")
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		Lookup:   lookup,
		Verdicts: verdicts,
		Cfg:      cfg,
		Metrics:  metrics.OrNew(m),
		now:      time.Now,
		sleep:    tim.Sleep,
	}
	e.claim = guardrails.MakeFileClaim(cfg.RunID, e.clock)
	return e
}

func (e *Engine) clock() time.Time { return e.now() }

// Paths returns the companion files of seg under the configured suffix
func (e *Engine) Paths(seg string) segment.Paths {
	return segment.PathsFor(seg, e.Cfg.RemovedSuffix)
}

// Process claims seg, rechecks every batch, writes the removed log and archives
// It returns guardrails.ErrClaimHeld when another run owns the segment
func (e *Engine) Process(ctx context.Context, seg string) (domain.SegmentResult, error) {
	ctx = logger.WithSegment(ctx, seg)
	res := domain.SegmentResult{Segment: seg}
	p := e.Paths(seg)
	err := e.claim(ctx, p, func(ctx context.Context) error {
		return e.run(ctx, p, &res)
	})
	return res, err
}

func (e *Engine) run(ctx context.Context, p segment.Paths, res *domain.SegmentResult) error {
	log := logger.C(ctx)

	if !segment.Exists(p.Segment) {
		if segment.Exists(p.Archive) {
			res.AlreadyDone = true
			return e.archive(ctx, p)
		}
		return perr.NotFoundf("segment %s does not exist", p.Segment)
	}
	if segment.Exists(p.Removed) {
		res.ArchiveOnly = true
		log.Info().Str("removed_log", p.Removed).Msg("removed log already complete; archiving")
		return e.archive(ctx, p)
	}
	// archiving stopped after the removed log was compressed and deleted
	if segment.Exists(p.RemovedArchive) {
		res.ArchiveOnly = true
		log.Info().Str("removed_archive", p.RemovedArchive).Msg("removed log already archived; archiving segment")
		return e.archive(ctx, p)
	}
	if err := os.Remove(p.RemovedPart); err == nil {
		log.Warn().Str("part", p.RemovedPart).Msg("discarded partial removed log; rechecking from the start")
	} else if !os.IsNotExist(err) {
		return perr.Wrapf(err, perr.ErrorCodeIO, "remove %s", p.RemovedPart)
	}

	rd, err := segment.OpenLimit(p.Segment, e.Cfg.MaxLineBytes)
	if err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()

	out, err := os.OpenFile(p.RemovedPart, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", p.RemovedPart)
	}
	w := bufio.NewWriter(out)
	closeOut := func() { _ = out.Close() }

	for idx := 0; ; idx++ {
		e.transition(ctx, domain.StateReading, idx)
		b, eof, err := e.readBatch(ctx, rd, idx, res)
		if err != nil {
			closeOut()
			return err
		}
		if len(b.Records) > 0 {
			res.Batches++
			if err := e.batch(ctx, b, w, p, res); err != nil {
				closeOut()
				return err
			}
		}
		if eof {
			break
		}
	}

	if err := w.Flush(); err != nil {
		closeOut()
		return perr.Wrapf(err, perr.ErrorCodeIO, "flush %s", p.RemovedPart)
	}
	if err := out.Sync(); err != nil {
		closeOut()
		return perr.Wrapf(err, perr.ErrorCodeIO, "sync %s", p.RemovedPart)
	}
	if err := out.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "close %s", p.RemovedPart)
	}
	if err := os.Rename(p.RemovedPart, p.Removed); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "rename %s", p.RemovedPart)
	}
	return e.archive(ctx, p)
}

// readBatch collects up to BatchSize distinct names in file order
// A repeated name replaces the earlier snapshot in place
func (e *Engine) readBatch(ctx context.Context, rd *segment.Reader, idx int, res *domain.SegmentResult) (domain.Batch, bool, error) {
	b := domain.Batch{Index: idx}
	pos := make(map[string]int, e.Cfg.BatchSize)
	for len(b.Records) < e.Cfg.BatchSize {
		line, lineNo, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return b, true, nil
		}
		if err != nil && !errors.Is(err, segment.ErrLineTooLong) {
			return b, false, err
		}
		var rec entity.Entity
		if err == nil {
			rec, err = entity.Deserialize(line)
		}
		if err != nil {
			res.Malformed++
			logger.C(ctx).Error().
				Err(err).
				Int("line", lineNo).
				Str("kind", perr.CodeName(err)).
				Str("type", perr.TypeName(err)).
				Str("outcome", "skipped").
				Msg("malformed segment line")
			continue
		}
		res.Records++
		if i, dup := pos[rec.Name]; dup {
			b.Records[i] = rec
			continue
		}
		pos[rec.Name] = len(b.Records)
		b.Records = append(b.Records, rec)
	}
	return b, false, nil
}

// batch runs Waiting, Fetching and Comparing for one batch
func (e *Engine) batch(ctx context.Context, b domain.Batch, w *bufio.Writer, p segment.Paths, res *domain.SegmentResult) error {
	e.transition(ctx, domain.StateWaiting, b.Index)
	if err := e.wait(ctx, b); err != nil {
		return err
	}

	e.transition(ctx, domain.StateFetching, b.Index)
	got, err := e.fetch(ctx, b)
	if err != nil {
		// only our own stop aborts the segment; a lookup that timed out is a failed batch
		if ctx.Err() != nil {
			return err
		}
		e.transition(ctx, domain.StateFailed, b.Index)
		res.Failed++
		e.Metrics.RecheckBatches.WithLabelValues("failed").Inc()
		logger.C(ctx).Error().
			Err(err).
			Int("batch", b.Index).
			Strs("ids", b.IDs()).
			Str("kind", perr.CodeName(err)).
			Str("type", perr.TypeName(err)).
			Str("outcome", "data_loss").
			Msg("batch lookup exhausted retries; verdicts dropped")
		return nil
	}

	e.transition(ctx, domain.StateComparing, b.Index)
	rows, err := e.compare(b, got, w, p, res)
	if err != nil {
		return err
	}
	e.Metrics.RecheckBatches.WithLabelValues("ok").Inc()
	e.record(ctx, rows)
	return nil
}

// wait blocks until the batch is eligible, sleeping in slices and re-reading now
func (e *Engine) wait(ctx context.Context, b domain.Batch) error {
	at, ok := b.EligibleAt(e.Cfg.Dwell)
	if !ok {
		return nil
	}
	for {
		left := at.Sub(e.now())
		if left <= 0 {
			return nil
		}
		d := min(left, e.Cfg.WaitSlice)
		logger.C(ctx).Debug().
			Int("batch", b.Index).
			Time("eligible_at", at).
			Dur("sleep", d).
			Msg("waiting for dwell")
		if err := e.sleep(ctx, d); err != nil {
			return perr.Wrap(err, perr.ErrorCodeCanceled, "dwell wait interrupted")
		}
	}
}

// fetch looks the batch up, retrying the same ids after DefaultSleep
func (e *Engine) fetch(ctx context.Context, b domain.Batch) (map[string]map[string]any, error) {
	ids := b.IDs()
	var last error
	for attempt := 1; attempt <= e.Cfg.MaxFetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeCanceled, "fetch canceled")
		}
		lctx, cancel := guardrails.ForLookup(ctx, e.Cfg.Timeouts)
		got, err := e.Lookup.LookupBatch(lctx, ids)
		cancel()
		if err == nil {
			return got, nil
		}
		if ctx.Err() != nil {
			return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeCanceled, "fetch canceled")
		}
		last = err
		outcome := "retry"
		if attempt == e.Cfg.MaxFetchAttempts {
			outcome = "give_up"
		}
		e.Metrics.LookupErrors.WithLabelValues(perr.CodeName(err)).Inc()
		logger.C(ctx).Error().
			Err(err).
			Int("batch", b.Index).
			Int("attempt", attempt).
			Int("ids", len(ids)).
			Str("kind", perr.CodeName(err)).
			Str("type", perr.TypeName(err)).
			Str("outcome", outcome).
			Msg("batch lookup failed")
		if attempt == e.Cfg.MaxFetchAttempts {
			break
		}
		if err := e.sleep(ctx, e.Cfg.DefaultSleep); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeCanceled, "retry sleep interrupted")
		}
	}
	return nil, last
}

// compare evaluates every record and appends matches to w
func (e *Engine) compare(
	b domain.Batch,
	got map[string]map[string]any,
	w *bufio.Writer,
	p segment.Paths,
	res *domain.SegmentResult,
) ([]domain.VerdictRow, error) {
	checked := e.now().UTC()
	var rows []domain.VerdictRow
	for _, orig := range b.Records {
		var ref *entity.Entity
		if raw, ok := got[orig.Name]; ok {
			c := entity.Canonicalize(raw)
			if c.Name == "" {
				c.Name = orig.Name
			}
			ref = &c
		}
		v := verdict.Check(orig, ref)
		if !v.Removed {
			continue
		}
		var out entity.Entity
		if ref == nil {
			res.Absent++
			out = entity.Entity{Name: orig.Name}.WithExtra(SignalKey, string(v.Signal))
		} else {
			out = ref.WithExtra(SignalKey, string(v.Signal))
		}
		line, err := entity.Serialize(out)
		if err != nil {
			// the refetched body cannot be encoded; keep the verdict with the name only
			line, err = entity.Serialize(entity.Entity{Name: orig.Name}.WithExtra(SignalKey, string(v.Signal)))
			if err != nil {
				return nil, err
			}
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeIO, "write %s", p.RemovedPart)
		}
		res.Removed++
		e.Metrics.Removed.WithLabelValues(string(v.Signal)).Inc()

		row := domain.VerdictRow{
			RunID:     e.Cfg.RunID,
			Segment:   p.Segment,
			Name:      orig.Name,
			Subreddit: orig.Subreddit,
			Author:    orig.Author,
			Signal:    string(v.Signal),
			CheckedAt: checked,
		}
		if c, ok := orig.Created(); ok {
			row.CreatedAt = tim.FromUnix(c)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// record hands verdicts to the optional sink; failures never stop the segment
func (e *Engine) record(ctx context.Context, rows []domain.VerdictRow) {
	if e.Verdicts == nil || len(rows) == 0 {
		return
	}
	if err := e.Verdicts.Record(ctx, rows); err != nil {
		e.Metrics.VerdictErrors.Inc()
		logger.C(ctx).Warn().
			Err(err).
			Int("rows", len(rows)).
			Str("kind", perr.CodeName(err)).
			Str("type", perr.TypeName(err)).
			Str("outcome", "dropped").
			Msg("verdict sink write failed")
		return
	}
	e.Metrics.VerdictRows.Add(float64(len(rows)))
}

func (e *Engine) archive(ctx context.Context, p segment.Paths) error {
	e.transition(ctx, domain.StateArchiving, -1)
	actx, cancel := guardrails.ForArchive(ctx, e.Cfg.Timeouts)
	defer cancel()
	if err := actx.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeCanceled, "archive canceled")
	}
	if err := segment.ArchiveAll(p); err != nil {
		return err
	}
	e.Metrics.SegmentsArchived.Inc()
	e.transition(ctx, domain.StateDone, -1)
	return nil
}

func (e *Engine) transition(ctx context.Context, s domain.State, batch int) {
	ev := logger.C(ctx).Debug().Str("state", s.String())
	if batch >= 0 {
		ev = ev.Int("batch", batch)
	}
	ev.Msg("recheck state")
}
