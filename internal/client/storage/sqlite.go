package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/finkeeper/internal/dbx"
	"github.com/dmitrijs2005/finkeeper/internal/timex"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db    *sql.DB
	clock timex.Clock
	repos *Repositories
}

func sqliteRepos(db dbx.DBTX, clock timex.Clock) *Repositories {
	return &Repositories{
		Records:  records.NewSQLiteRepository(db, clock),
		IDMap:    idmap.NewSQLiteRepository(db, clock),
		Queue:    queue.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}
}

func openSQLite(ctx context.Context, dsn string, clock timex.Clock) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if err := migrations.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, clock: clock, repos: sqliteRepos(db, clock)}, nil
}

func (s *sqliteStore) Repos() *Repositories { return s.repos }

func (s *sqliteStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, sqliteRepos(tx, s.clock))
	})
}

func (s *sqliteStore) Close() error { return s.db.Close() }
