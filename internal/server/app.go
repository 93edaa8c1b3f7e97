// Package server initializes and runs the auth server: it wires the
// connection pool, request binder and transaction manager to the
// repositories and services, runs migrations, and starts the HTTP
// endpoint with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cghughes/authd/internal/logging"
	"github.com/cghughes/authd/internal/server/config"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/email"
	"github.com/cghughes/authd/internal/server/httpapi"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
	"github.com/cghughes/authd/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	pool   *db.Pool
	binder *db.Binder
	server *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	pool, err := db.NewPool(cfg.DatabaseDSN, cfg.ConnectionLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), pool.DB()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	binder := db.NewBinder(pool, cfg.BindingTTL, logger)
	sessions := db.NewTxManager(binder, logger)

	var sender email.Sender
	if cfg.SendgridAPIKey != "" {
		sender = email.NewSendgridSender(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	} else {
		sender = email.NewNoopSender(logger)
	}

	us := services.NewUserService(sessions, rm)
	ts := services.NewTokenService(sessions, rm, cfg)
	as := services.NewAuthService(us, ts, sessions, rm, sender, logger)

	srv := httpapi.NewServer(cfg.EndpointAddrHTTP, sessions, as, us, ts, logger)

	return &App{config: cfg, logger: logger, pool: pool, binder: binder, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
	}

	// Shutdown order: endpoint first, then the binder's sweeper, then the
	// pool, which force-destroys anything still checked out.
	app.binder.Close()
	if err := app.pool.Close(context.Background()); err != nil {
		app.logger.Error(ctx, "pool close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
