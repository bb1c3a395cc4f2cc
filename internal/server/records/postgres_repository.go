package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/dbx"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// PostgresRepository stores entries in the records and creates tables of
// the server schema.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, resource, ord, updated_at, changed_at, is_deleted, data, created_by, created_as`

func scanEntry(s dbx.Scanner) (*Entry, error) {
	var (
		e        Entry
		resource string
		ord      sql.NullInt64
		data     []byte
	)
	if err := s.Scan(&e.ID, &resource, &ord, &e.UpdatedAt, &e.ChangedAt, &e.IsDeleted, &data, &e.CreatedBy, &e.CreatedAs); err != nil {
		return nil, err
	}
	e.Resource = shared.Resource(resource)
	if ord.Valid {
		o := int(ord.Int64)
		e.Order = &o
	}
	if len(data) > 0 {
		e.Data = data
	}
	return &e, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM records WHERE id = $1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Put(ctx context.Context, e *Entry) error {
	query := `INSERT INTO records (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			resource = EXCLUDED.resource,
			ord = EXCLUDED.ord,
			updated_at = EXCLUDED.updated_at,
			changed_at = EXCLUDED.changed_at,
			is_deleted = EXCLUDED.is_deleted,
			data = EXCLUDED.data,
			created_by = EXCLUDED.created_by,
			created_as = EXCLUDED.created_as`

	var ord sql.NullInt64
	if e.Order != nil {
		ord = sql.NullInt64{Int64: int64(*e.Order), Valid: true}
	}
	var data []byte
	if len(e.Data) > 0 {
		data = e.Data
	}

	_, err := r.db.ExecContext(ctx, query,
		e.ID, string(e.Resource), ord, e.UpdatedAt, e.ChangedAt, e.IsDeleted, data, e.CreatedBy, e.CreatedAs)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ChangedSince(ctx context.Context, from, to int64) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM records
		WHERE changed_at > $1 AND changed_at <= $2
		ORDER BY changed_at, id`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) CreatedBy(ctx context.Context, deviceID, recordID string) (string, error) {
	query := `SELECT id FROM creates WHERE device_id = $1 AND record_id = $2`

	var id string
	err := r.db.QueryRowContext(ctx, query, deviceID, recordID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error performing sql request: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) RememberCreate(ctx context.Context, deviceID, recordID, id string) error {
	query := `INSERT INTO creates (device_id, record_id, id) VALUES ($1, $2, $3)
		ON CONFLICT (device_id, record_id) DO UPDATE SET id = EXCLUDED.id`

	if _, err := r.db.ExecContext(ctx, query, deviceID, recordID, id); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
