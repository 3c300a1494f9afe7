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

	"modwatch/internal/adapters/logsink"
	"modwatch/internal/adapters/origin/reddit"
	"modwatch/internal/core/version"
	"modwatch/internal/modkit"
	"modwatch/internal/modkit/module"
	"modwatch/internal/platform/config"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
	phttp "modwatch/internal/platform/net/http"
	"modwatch/internal/platform/store"

	ingestmod "modwatch/internal/services/ingest/module"
	recheckmod "modwatch/internal/services/recheck/module"
	statusmod "modwatch/internal/services/status/module"
	statussvc "modwatch/internal/services/status/service"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func durEnv(d time.Duration) string {
	if d < 0 {
		return ""
	}
	return d.String()
}

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred closes finish before the process exits
func run() int {
	var (
		fLogDir   = flag.String("log-dir", "", "directory for segment logs (default data)")
		fLogName  = flag.String("log-name", "", "active log file name (default comments.log)")
		fSuffix   = flag.String("removed-suffix", "", "suffix of the removed-items log (default .removed)")
		fErrLog   = flag.String("error-log", "", "also append error level logs to this file")
		fRunFor   = flag.Duration("run-for", -1, "stop ingesting after this long (0 = forever)")
		fUnit     = flag.String("rotate-unit", "", "rotation unit: S|M|H|D|midnight|W0..W6 (default M)")
		fInterval = flag.Int("rotate-interval", 0, "rotation interval in units (default 1)")
		fSleep    = flag.Duration("sleep", -1, "pause after a stream or lookup failure (default 60s)")
		fBatch    = flag.Int("batch-size", 0, "recheck lookup batch size, at most 100 (default 100)")
		fDwell    = flag.Duration("dwell", -1, "delay between creation and recheck (default 24h)")
		fWorkers  = flag.Int("workers", 0, "concurrent segment rechecks (default 4)")
		fSub      = flag.String("subreddit", "", "subreddit stream to follow (default all)")
	)
	flag.Parse()

	mustSetEnv("LOG_ERROR_FILE", *fErrLog)
	mustSetEnv("MODWATCH_LOG_DIR", *fLogDir)
	mustSetEnv("MODWATCH_LOG_NAME", *fLogName)
	mustSetEnv("MODWATCH_REMOVED_SUFFIX", *fSuffix)
	mustSetEnv("MODWATCH_RUN_FOR", durEnv(*fRunFor))
	mustSetEnv("MODWATCH_ROTATE_UNIT", *fUnit)
	mustSetEnv("MODWATCH_SLEEP", durEnv(*fSleep))
	mustSetEnv("MODWATCH_DWELL", durEnv(*fDwell))
	mustSetEnv("MODWATCH_SUBREDDIT", *fSub)
	if *fInterval > 0 {
		mustSetEnv("MODWATCH_ROTATE_INTERVAL", fmt.Sprintf("%d", *fInterval))
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

	st, err := store.Open(ctx, store.FromConfig(root, "crawl"), store.WithLogger(*l))
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

	// one client so ingest polls and recheck lookups draw on the same rate budget
	client := reddit.NewClient(reddit.FromConfig(root))

	// recheck first so the sink can hand it sealed segments
	rc := recheckmod.NewWithLookup(deps, client)
	runner := module.MustPortsOf[recheckmod.Ports](rc).Runner
	if err := rc.Prepare(ctx); err != nil {
		l.Panic().Err(err).Msg("recheck prepare failed")
	}

	sink, err := logsink.Open(logsink.FromConfig(root),
		logsink.WithNotify(runner.Enqueue),
		logsink.WithMetrics(deps.Metrics),
	)
	if err != nil {
		l.Panic().Err(err).Msg("logsink.Open failed")
	}

	ing := ingestmod.NewWithClient(deps, sink, client)
	ingest := module.MustPortsOf[ingestmod.Ports](ing).Runner

	status := statusmod.New(deps, statussvc.Sources{
		Ingest:  ingest.Stats,
		Sink:    sink.Stats,
		Recheck: runner.Stats,
	})

	var srv *phttp.Server
	if addr := status.Options().Addr; addr != "" {
		srv = phttp.NewServer(phttp.ServerOptions{Addr: addr})
		modkit.Mount(srv.Router(), ing, rc, status)
	} else {
		modkit.Mount(nil, ing, rc, status)
	}

	if n, err := runner.Reconcile(ctx); err != nil {
		l.Panic().Err(err).Msg("recheck reconcile failed")
	} else if n > 0 {
		l.Info().Int("segments", n).Msg("resuming leftover segments")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return ingest.Run(gctx)
	})
	g.Go(func() error { return runner.Run(gctx) })
	if srv != nil {
		g.Go(func() error { return srv.Run(gctx) })
	}

	err = g.Wait()
	if cerr := sink.Close(); cerr != nil {
		l.Error().Err(cerr).Msg("failed to close log sink")
	}
	if err != nil {
		l.Error().Err(err).Msg("crawl stopped with error")
		return 1
	}
	l.Info().Interface("ingest", ingest.Stats()).Interface("recheck", runner.Stats()).Msg("crawl finished")
	return 0
}

