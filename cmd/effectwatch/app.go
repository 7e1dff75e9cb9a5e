package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/effectwatch/internal/config"
	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/database"
	"github.com/rickgao/effectwatch/internal/effect"
	"github.com/rickgao/effectwatch/internal/model"
	"github.com/rickgao/effectwatch/internal/router"
	"github.com/rickgao/effectwatch/internal/version"
	"github.com/rickgao/effectwatch/internal/writer"
)

const shutdownTimeout = 10 * time.Second

// app is the running pipeline: connection manager -> router -> store, with
// the optional history writer and health server on the side.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	conn   connection.Manager
	router router.Router
	store  *effect.Store

	pool   *pgxpool.Pool
	writer *writer.EventWriter

	health *http.Server
}

// newApp builds every component from cfg. Nothing is started yet.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.store = effect.NewStore(storeConfig(cfg.View), logger.With("component", "store"))

	a.conn = connection.NewManager(managerConfig(cfg), logger.With("component", "connection"))

	routerCfg := router.DefaultRouterConfig()
	routerCfg.TopicPrefix = cfg.Server.TopicPrefix
	routerCfg.RecordHistory = cfg.History.Enabled
	routerCfg.HistoryBufferSize = cfg.History.BufferSize
	routerCfg.HistoryBufferMax = cfg.History.BufferMax
	a.router = router.NewRouter(routerCfg, a.conn.Messages(), a.store, logger.With("component", "router"))

	if cfg.History.Enabled {
		db := cfg.History.Database
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)

		pool, err := database.Open(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("open history database: %w", err)
		}
		a.pool = pool
		logger.Info("database connected")

		a.writer = writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
			InstanceID:    cfg.Instance.ID,
		}, a.router.History(), pool, logger.With("component", "writer"))
	}

	if cfg.Health.Enabled {
		a.health = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(a.conn, a.router, a.store, a.pool, a.writer, logger),
		}
	}

	return a, nil
}

// managerConfig maps the connection section onto the manager settings.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	c := cfg.Connection
	return connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:            cfg.Server.URL,
			Host:           cfg.Server.Host,
			Login:          cfg.Server.Login,
			Passcode:       cfg.Server.Passcode,
			ConnectTimeout: c.ConnectTimeout,
			PingInterval:   c.PingInterval,
			PingTimeout:    c.PingTimeout,
			WriteTimeout:   c.WriteTimeout,
			BufferSize:     c.BufferSize,
		},
		Topics:            connection.EffectTopics(cfg.Server.TopicPrefix),
		Policy:            reconnectPolicy(c),
		MessageBufferSize: c.BufferSize,
	}
}

func reconnectPolicy(c config.ConnectionConfig) connection.ReconnectPolicy {
	if c.ReconnectPolicy == "exponential" {
		return connection.ExponentialBackoff{
			Base:        c.ReconnectDelay,
			Max:         c.ReconnectMaxDelay,
			MaxAttempts: c.MaxAttempts,
		}
	}
	return connection.FixedDelay{
		Delay:       c.ReconnectDelay,
		MaxAttempts: c.MaxAttempts,
	}
}

// storeConfig maps the view section onto the store settings.
func storeConfig(v config.ViewConfig) effect.Config {
	cfg := effect.DefaultConfig()
	cfg.DisplayCap = v.DisplayCap
	cfg.RetainTerminal = v.RetainTerminal
	cfg.PruneInterval = v.PruneInterval
	if len(v.TerminalStates) > 0 {
		cfg.TerminalStates = make([]model.State, len(v.TerminalStates))
		for i, s := range v.TerminalStates {
			cfg.TerminalStates[i] = model.State(s)
		}
	}
	return cfg
}

// start brings components up consumer first, so the router and writer are
// ready before the first message arrives.
func (a *app) start(ctx context.Context) error {
	if err := a.store.Start(ctx); err != nil {
		return fmt.Errorf("start effect store: %w", err)
	}
	if err := a.router.Start(ctx); err != nil {
		return fmt.Errorf("start message router: %w", err)
	}
	if a.writer != nil {
		if err := a.writer.Start(ctx); err != nil {
			return fmt.Errorf("start event writer: %w", err)
		}
	}
	if err := a.conn.Start(ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	a.logger.Info("effectwatch running",
		"instance_id", a.cfg.Instance.ID,
		"url", a.cfg.Server.URL,
		"history", a.writer != nil,
	)
	return nil
}

// stop shuts components down producer first.
func (a *app) stop() {
	a.logger.Info("shutting down...")

	withTimeout := func(stop func(context.Context) error, name string) {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stop(ctx); err != nil {
			a.logger.Warn("shutdown error", "component", name, "error", err)
		}
	}

	withTimeout(a.conn.Stop, "connection")
	withTimeout(a.router.Stop, "router")
	if a.writer != nil {
		withTimeout(a.writer.Stop, "writer")
	}
	withTimeout(a.store.Stop, "store")
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("effectwatch stopped")
}

// serveHealth runs the health server until ctx is done.
func (a *app) serveHealth(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting health server", "addr", a.health.Addr)
		if err := a.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.health.Shutdown(shutdownCtx)
}

// run builds and starts the pipeline, then hands control to front until it
// returns or a shutdown signal arrives.
func run(cfg *config.Config, logger *slog.Logger, front func(context.Context, *app) error) error {
	logger.Info("starting effectwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	ctx, cancel := signalContext(logger)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.stop()

	if err := a.start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.health != nil {
		g.Go(func() error { return a.serveHealth(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return front(gctx, a)
	})
	return g.Wait()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
