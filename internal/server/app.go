// Package server wires the reference sync server: a record store (PostgreSQL
// when a DSN is configured, in memory otherwise) served over HTTP and gRPC,
// with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/finkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/server/config"
	"github.com/dmitrijs2005/finkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/finkeeper/internal/server/records"
	"github.com/dmitrijs2005/finkeeper/internal/server/rest"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/finkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	records *records.Service
}

// openDB is a seam for tests.
var openDB = migrations.Open

func NewApp(c *config.Config) (*App, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}

	logger := logging.NewJSONLogger(slog.LevelInfo)
	app := &App{config: c, logger: logger}

	var repo records.Repository = records.NewMemoryRepository()
	if c.DatabaseDSN != "" {
		db, err := openDB(context.Background(), c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		repo = records.NewPostgresRepository(db)
	}
	app.records = records.NewService(repo, timex.SystemClock{}, logger)

	return app, nil
}

// Run serves until ctx is cancelled or a signal arrives. The first server
// error stops the others.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "build", buildinfo.String(), "auth", app.config.SecretKey != "", "postgres", app.db != nil)

	if app.db != nil {
		defer func() {
			if err := app.db.Close(); err != nil {
				app.logger.Error(ctx, "db close", "error", err)
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)

	if app.config.EndpointAddrHTTP != "" {
		hs := rest.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.records, app.config.SecretKey)
		g.Go(func() error { return hs.Run(ctx) })
	}

	if app.config.EndpointAddrGRPC != "" {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.records, app.config.SecretKey)
		g.Go(func() error { return s.Run(ctx) })
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}
	return err
}
