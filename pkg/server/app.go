package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"GoldPulse/internal/dedup"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/execution"
	"GoldPulse/internal/pipeline"
	"GoldPulse/internal/service/jobs"
	"GoldPulse/internal/service/marketdata"
	pkgch "GoldPulse/pkg/clickhouse"
	"GoldPulse/pkg/config"
	xhttp "GoldPulse/pkg/http"
	applogger "GoldPulse/pkg/logger"
	"GoldPulse/pkg/queue"
)

// Components bundles everything the application lifecycle owns.
type Components struct {
	ClickHouse   *pkgch.Client
	Store        repository.SignalStore
	Publisher    repository.Publisher
	Deduplicator *dedup.Deduplicator
	Feed         *marketdata.Feed
	Broker       repository.Broker
	Coordinator  *execution.Coordinator
	Workers      *pipeline.WorkerGroup
	NotifyQueue  *queue.MemoryQueue
	Scheduler    *jobs.Scheduler
	Handler      xhttp.Handler
}

// App encapsulates the application lifecycle: startup ordering, the run
// loop, and graceful shutdown.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates an App from wired components.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts every component and blocks until interrupted. Startup order
// matters: the store schema and dedup rehydration must complete before any
// worker can evaluate a candle, or a restart would replay suppressed
// signals as fresh ones.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.c.Store.Init(ctx); err != nil {
		a.log.Error("signal store init failed", applogger.Error(err))
		return err
	}

	if err := a.c.Deduplicator.Rehydrate(ctx); err != nil {
		a.log.Error("dedup rehydration failed", applogger.Error(err))
		return err
	}

	if err := a.c.NotifyQueue.Start(); err != nil {
		a.log.Error("notification queue start failed", applogger.Error(err))
		return err
	}

	if err := a.c.Feed.Start(ctx); err != nil {
		a.log.Error("market feed start failed", applogger.Error(err))
		return err
	}
	a.log.Info("market feed connected", applogger.String("symbol", a.cfg.Pipeline.Symbol))

	// Paper and bridge brokers both run their own event loop.
	if r, ok := a.c.Broker.(interface{ Run(context.Context) }); ok {
		go r.Run(ctx)
	}
	go a.c.Coordinator.Run(ctx)

	a.c.Workers.Start(ctx)
	a.log.Info("timeframe workers started",
		applogger.Strings("timeframes", a.cfg.Pipeline.Timeframes))

	if err := a.c.Scheduler.Start(); err != nil {
		a.log.Error("scheduler start failed", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.c.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start failed", applogger.Error(err))
		return err
	}
	a.log.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in reverse dependency order, draining the
// notification queue before closing the transports it may still use.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.c.Workers.Wait()
	a.c.Scheduler.Stop()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}

	if err := a.c.NotifyQueue.Stop(shutdownCtx); err != nil {
		a.log.Warn("notification queue stop error", applogger.Error(err))
	}

	if err := a.c.Feed.Stop(); err != nil {
		a.log.Warn("market feed stop error", applogger.Error(err))
	}
	if err := a.c.Broker.Close(); err != nil {
		a.log.Warn("broker close error", applogger.Error(err))
	}
	if err := a.c.Publisher.Close(); err != nil {
		a.log.Warn("event publisher close error", applogger.Error(err))
	}
	if err := a.c.Store.Close(); err != nil {
		a.log.Warn("signal store close error", applogger.Error(err))
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
