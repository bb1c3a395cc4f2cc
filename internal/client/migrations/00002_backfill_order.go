package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upBackfillOrder, downBackfillOrder)
}

// upBackfillOrder gives every live record of an ordered resource a position
// so each scope holds exactly 0..N-1. Records that already have an order
// keep their relative position; the rest follow, newest first.
func upBackfillOrder(ctx context.Context, tx *sql.Tx) error {
	for _, r := range shared.Resources {
		if !r.Ordered() {
			continue
		}
		if err := BackfillOrder(ctx, tx, r); err != nil {
			return err
		}
	}
	return nil
}

func downBackfillOrder(ctx context.Context, tx *sql.Tx) error {
	return nil
}

// BackfillOrder renumbers the live records of resource r.
func BackfillOrder(ctx context.Context, tx *sql.Tx, r shared.Resource) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM records
		WHERE resource = ? AND is_deleted = 0
		ORDER BY ord IS NULL, ord, updated_at DESC, id`, string(r))
	if err != nil {
		return fmt.Errorf("backfill order[%s]: %w", r, err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("backfill order[%s]: %w", r, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("backfill order[%s]: %w", r, err)
	}
	rows.Close()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE records SET ord = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("backfill order[%s]: %w", r, err)
		}
	}
	return nil
}
