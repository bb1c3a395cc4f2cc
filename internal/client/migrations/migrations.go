// Package migrations embeds the client SQLite schema and registers Go data
// migrations with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// quietLogger drops goose progress output; failures still surface as errors.
type quietLogger struct{}

func (quietLogger) Fatalf(format string, v ...interface{}) { panic(fmt.Sprintf(format, v...)) }
func (quietLogger) Printf(format string, v ...interface{}) {}

// RunMigrations applies all pending migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, func() error { return goose.UpContext(ctx, db, ".") })
}

// RunMigrationsTo applies migrations up to and including version.
func RunMigrationsTo(ctx context.Context, db *sql.DB, version int64) error {
	return migrate(ctx, db, func() error { return goose.UpToContext(ctx, db, ".", version) })
}

func migrate(ctx context.Context, db *sql.DB, up func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(quietLogger{})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
