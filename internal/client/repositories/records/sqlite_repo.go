package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/dbx"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

const columns = `id, server_id, resource, ord, updated_at, server_updated_at, is_deleted, synced, data`

type SQLiteRepository struct {
	db    dbx.DBTX
	clock timex.Clock
}

func NewSQLiteRepository(db dbx.DBTX, clock timex.Clock) *SQLiteRepository {
	return &SQLiteRepository{db: db, clock: clock}
}

func scanRecord(s dbx.Scanner) (*models.Record, error) {
	var (
		r        models.Record
		serverID sql.NullString
		resource string
		ord      sql.NullInt64
		sua      sql.NullInt64
		data     []byte
	)
	if err := s.Scan(&r.ID, &serverID, &resource, &ord, &r.UpdatedAt, &sua, &r.IsDeleted, &r.Synced, &data); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		r.Data = data
	}
	r.ServerID = serverID.String
	r.Resource = shared.Resource(resource)
	if ord.Valid {
		r.Order = models.IntPtr(int(ord.Int64))
	}
	if sua.Valid {
		r.ServerUpdatedAt = models.Int64Ptr(sua.Int64)
	}
	return &r, nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, scope shared.Resource, includeDeleted bool) ([]*models.Record, error) {
	q := `SELECT ` + columns + ` FROM records WHERE resource = ?`
	if !includeDeleted {
		q += ` AND is_deleted = 0`
	}
	q += ` ORDER BY ord IS NULL, ord, updated_at DESC, id`

	recs, err := r.query(ctx, q, string(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list records[%s]: %w", scope, err)
	}
	return recs, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, arg string) (*models.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM records WHERE `+where+` = ?`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	rec, err := r.getOne(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record[%s]: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetByServerID(ctx context.Context, serverID string) (*models.Record, error) {
	rec, err := r.getOne(ctx, "server_id", serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get record by server id[%s]: %w", serverID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, rec *models.Record) error {
	ts := max(timex.NowMillis(r.clock), rec.UpdatedAt)

	var updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO records (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			resource = excluded.resource,
			ord = excluded.ord,
			updated_at = MAX(excluded.updated_at, records.updated_at + 1),
			server_updated_at = excluded.server_updated_at,
			is_deleted = excluded.is_deleted,
			synced = 0,
			data = excluded.data
		RETURNING updated_at`,
		rec.ID, dbx.NullString(rec.ServerID), string(rec.Resource), dbx.NullInt(rec.Order), ts,
		dbx.NullInt64(rec.ServerUpdatedAt), rec.IsDeleted, []byte(rec.Data),
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record[%s]: %w", rec.ID, err)
	}

	rec.UpdatedAt = updatedAt
	rec.Synced = false
	return nil
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			resource = excluded.resource,
			ord = excluded.ord,
			updated_at = excluded.updated_at,
			server_updated_at = excluded.server_updated_at,
			is_deleted = excluded.is_deleted,
			synced = excluded.synced,
			data = excluded.data`,
		rec.ID, dbx.NullString(rec.ServerID), string(rec.Resource), dbx.NullInt(rec.Order), rec.UpdatedAt,
		dbx.NullInt64(rec.ServerUpdatedAt), rec.IsDeleted, rec.Synced, []byte(rec.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to put record[%s]: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string) (*models.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		UPDATE records
		SET is_deleted = 1, synced = 0, ord = NULL, updated_at = MAX(?, updated_at + 1)
		WHERE id = ?
		RETURNING `+columns, timex.NowMillis(r.clock), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to delete record[%s]: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete record[%s]: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge record[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ReassignOrder(ctx context.Context, scope shared.Resource, ids []string) ([]*models.Record, error) {
	var changed []*models.Record

	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		live, err := NewSQLiteRepository(tx, r.clock).GetAll(ctx, scope, false)
		if err != nil {
			return err
		}
		current, err := checkPermutation(live, ids)
		if err != nil {
			return err
		}

		now := timex.NowMillis(r.clock)
		for i, id := range ids {
			if o := current[id]; o != nil && *o == i {
				continue
			}
			rec, err := scanRecord(tx.QueryRowContext(ctx, `
				UPDATE records
				SET ord = ?, synced = 0, updated_at = MAX(?, updated_at + 1)
				WHERE id = ?
				RETURNING `+columns, i, now, id))
			if err != nil {
				return fmt.Errorf("failed to reorder record[%s]: %w", id, err)
			}
			changed = append(changed, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.Record, error) {
	recs, err := r.query(ctx, `SELECT `+columns+` FROM records WHERE synced = 0 ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced records: %w", err)
	}
	return recs, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
