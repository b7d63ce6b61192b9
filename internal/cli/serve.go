package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/listkeeper/internal/backend"
	"github.com/runnerr0/listkeeper/internal/httpapi"
	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/lookup"
	"github.com/runnerr0/listkeeper/internal/merge"
)

const shutdownTimeout = 5 * time.Second

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.run(ctx, e)
}

// run serves until ctx is done or a component fails.
func (c *ServeCommand) run(ctx context.Context, e *env) error {
	srvCfg := e.cfg.Server
	if c.Host != "" {
		srvCfg.Host = c.Host
	}
	if c.Port != 0 {
		srvCfg.Port = c.Port
	}

	deps := httpapi.Deps{
		Logger:    e.logger.With(logger.String("component", "http")),
		Store:     e.store,
		Checker:   lookup.NewChecker(e.store, nil, e.logger),
		StartTime: time.Now(),
		Version:   c.version,
	}

	g, ctx := errgroup.WithContext(ctx)

	if path := e.cfg.Sync.SourceFile; path != "" {
		syncLog := e.logger.With(logger.String("component", "syncer"))
		engine := merge.NewEngine(e.store, nil, syncLog, e.cfg.Sync.SourceName)
		syncer := backend.NewSyncer(backend.SyncerConfig{
			Interval:       e.cfg.Sync.Interval,
			InitialBackoff: e.cfg.Sync.InitialBackoff,
			MaxBackoff:     e.cfg.Sync.MaxBackoff,
			Timeout:        e.cfg.Sync.Timeout,
		}, backend.NewFileFetcher(path), engine, syncLog)
		deps.Syncer = syncer

		g.Go(func() error { return syncer.Run(ctx) })
	} else {
		e.logger.Warn("sync.source_file is not set; backend sync disabled")
	}

	srv := httpapi.New(srvCfg.Addr(), srvCfg.RequestTimeout, deps)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		e.logger.Error("serve stopped with error", logger.Error(err))
		return err
	}
	e.logger.Info("serve stopped gracefully")
	return nil
}
