package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"modwatch/internal/adapters/watch"
	"modwatch/internal/core/version"
	"modwatch/internal/modkit"
	"modwatch/internal/modkit/module"
	"modwatch/internal/platform/config"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
	"modwatch/internal/platform/store"

	recheckmod "modwatch/internal/services/recheck/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred closes finish before the process exits
func run() int {
	var (
		fSegment = flag.String("segment", "", "recheck exactly this sealed segment and exit")
		fDir     = flag.String("dir", "", "segment directory to sweep (default MODWATCH_LOG_DIR or data)")
		fName    = flag.String("log-name", "", "active log file name, never rechecked (default comments.log)")
		fSuffix  = flag.String("removed-suffix", "", "suffix of the removed-items log (default .removed)")
		fWatch   = flag.Bool("watch", false, "keep running and recheck segments as they are sealed")
		fErrLog  = flag.String("error-log", "", "also append error level logs to this file")
		fBatch   = flag.Int("batch-size", 0, "lookup batch size, at most 100 (default 100)")
		fDwell   = flag.Duration("dwell", -1, "delay between creation and recheck (default 24h)")
		fSleep   = flag.Duration("sleep", -1, "pause after a lookup failure (default 60s)")
		fWorkers = flag.Int("workers", 0, "concurrent segment rechecks (default 4)")
	)
	flag.Parse()

	mustSetEnv("LOG_ERROR_FILE", *fErrLog)
	mustSetEnv("MODWATCH_LOG_DIR", *fDir)
	mustSetEnv("MODWATCH_LOG_NAME", *fName)
	mustSetEnv("MODWATCH_REMOVED_SUFFIX", *fSuffix)
	if *fDwell >= 0 {
		mustSetEnv("MODWATCH_DWELL", fDwell.String())
	}
	if *fSleep >= 0 {
		mustSetEnv("MODWATCH_SLEEP", fSleep.String())
	}
	if *fBatch > 0 {
		mustSetEnv("MODWATCH_BATCH_SIZE", fmt.Sprintf("%d", *fBatch))
	}
	if *fWorkers > 0 {
		mustSetEnv("MODWATCH_WORKERS", fmt.Sprintf("%d", *fWorkers))
	}

	root := config.New()
	l := logger.Get()
	l.Info().Interface("build", version.Info()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "recheck"), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log:     *l,
		Cfg:     root,
		Metrics: metrics.New(),
		CH:      st.CH,
	}

	rc := recheckmod.New(deps)
	modkit.Mount(nil, rc)
	runner := module.MustPortsOf[recheckmod.Ports](rc).Runner
	if err := rc.Prepare(ctx); err != nil {
		l.Panic().Err(err).Msg("recheck prepare failed")
	}

	started := time.Now()
	switch {
	case *fSegment != "":
		res, err := rc.Engine().Process(ctx, *fSegment)
		if err != nil {
			l.Error().Err(err).Str("segment", *fSegment).Msg("recheck failed")
			return 1
		}
		l.Info().
			Str("segment", res.Segment).
			Int("records", res.Records).
			Int("removed", res.Removed).
			Int("absent", res.Absent).
			Int("failed_batches", res.Failed).
			Dur("took", time.Since(started)).
			Msg("segment rechecked")

	case *fWatch:
		opts := rc.Options()
		w, err := watch.New(opts.LogDir, opts.LogName, runner.Enqueue)
		if err != nil {
			l.Panic().Err(err).Msg("watch.New failed")
		}
		defer func() { _ = w.Close() }()

		if _, err := runner.Reconcile(ctx); err != nil {
			l.Panic().Err(err).Msg("recheck reconcile failed")
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return w.Run(gctx) })
		g.Go(func() error { return runner.Run(gctx) })
		if err := g.Wait(); err != nil {
			l.Error().Err(err).Msg("recheck watch stopped with error")
			return 1
		}

	default:
		n, err := runner.Reconcile(ctx)
		if err != nil {
			l.Panic().Err(err).Msg("recheck reconcile failed")
		}
		if err := runner.Drain(ctx); err != nil {
			l.Error().Err(err).Msg("recheck sweep interrupted")
			return 1
		}
		stats := runner.Stats()
		l.Info().
			Int("segments", n).
			Int64("processed", stats.Processed).
			Int64("failed", stats.Failed).
			Int64("skipped", stats.Skipped).
			Dur("took", time.Since(started)).
			Msg("sweep finished")
	}
	return 0
}
