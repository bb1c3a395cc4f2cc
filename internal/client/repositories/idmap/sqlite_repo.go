package idmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/dbx"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

type SQLiteRepository struct {
	db    dbx.DBTX
	clock timex.Clock
}

func NewSQLiteRepository(db dbx.DBTX, clock timex.Clock) *SQLiteRepository {
	return &SQLiteRepository{db: db, clock: clock}
}

func (r *SQLiteRepository) lookup(ctx context.Context, q, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (r *SQLiteRepository) Resolve(ctx context.Context, localID string) (string, error) {
	v, err := r.lookup(ctx, `SELECT server_id FROM id_map WHERE local_id = ?`, localID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve id[%s]: %w", localID, err)
	}
	return v, nil
}

func (r *SQLiteRepository) ResolveLocal(ctx context.Context, serverID string) (string, error) {
	v, err := r.lookup(ctx, `SELECT local_id FROM id_map WHERE server_id = ?`, serverID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve server id[%s]: %w", serverID, err)
	}
	return v, nil
}

func (r *SQLiteRepository) Map(ctx context.Context, localID, serverID string) error {
	return dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		x := &SQLiteRepository{db: tx, clock: r.clock}

		existing, err := x.Resolve(ctx, localID)
		if err != nil {
			return err
		}
		owner, err := x.ResolveLocal(ctx, serverID)
		if err != nil {
			return err
		}
		if err := checkMapping(localID, serverID, existing, owner); err != nil || existing != "" {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO id_map (local_id, server_id, mapped_at) VALUES (?, ?, ?)`,
			localID, serverID, timex.NowMillis(r.clock))
		if err != nil {
			return fmt.Errorf("failed to map id[%s]: %w", localID, err)
		}
		return nil
	})
}
