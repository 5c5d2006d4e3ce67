package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/raterudder/solarwatch/pkg/alert"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/observability"
	"github.com/raterudder/solarwatch/pkg/server"
	"github.com/raterudder/solarwatch/pkg/storage"
	"github.com/raterudder/solarwatch/pkg/timeseries"
	"golang.org/x/sync/errgroup"

	"github.com/levenlabs/go-lflag"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code once every deferred close has run.
func run() int {
	metrics := observability.NewMetrics()
	holder := timeseries.NewHolder(nil)

	// init packages
	s := storage.Configured()
	ts := timeseries.Configured(s)
	pub := alert.Configured()

	// init server
	srv := server.Configured(holder, metrics)

	// parse flags
	lflag.Configure()

	if err := log.Setup("solarwatch"); err != nil {
		panic(err)
	}
	slog.Debug("logger configured")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	// The publisher goes first so pending alerts are flushed.
	defer func() {
		closeAll(ctx, namedCloser{"alert publisher", pub}, namedCloser{"storage", s})
	}()

	clock := clockwork.NewRealClock()
	plant := srv.Plant()
	notifier := alert.NewNotifier(pub, plant.Name, plant.AlertThresholdPct, clock, metrics)
	reloader := timeseries.NewReloader(holder, ts.LoadFunc(srv.Location()), ts.ReloadInterval(), clock, metrics)
	reloader.Subscribe(func(ctx context.Context, st *timeseries.Store) {
		// failures are logged and retried after the next reload
		_ = notifier.Notify(ctx, st)
	})

	// the first load must succeed, later failures keep the last snapshot
	if err := reloader.Reload(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load time series", slog.String("source", ts.Source().String()), slog.Any("error", err))
		return 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return reloader.Run(ctx)
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
	return 0
}

type namedCloser struct {
	name string
	c    io.Closer
}

// closeAll closes every closer in order, logging failures, and reports
// whether all of them closed cleanly.
func closeAll(ctx context.Context, closers ...namedCloser) bool {
	ok := true
	for _, nc := range closers {
		if err := nc.c.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close "+nc.name, slog.Any("error", err))
			ok = false
		}
	}
	return ok
}
