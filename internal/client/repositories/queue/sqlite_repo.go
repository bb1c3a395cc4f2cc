package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/dbx"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

const columns = `seq, operation_id, type, resource, record_id, data, local_timestamp, retry_count, device_id, rollback`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scanOperation(s dbx.Scanner) (*models.Operation, error) {
	var (
		op       models.Operation
		typ      string
		resource string
		data     []byte
		rollback []byte
	)
	err := s.Scan(&op.Seq, &op.OperationID, &typ, &resource, &op.RecordID, &data,
		&op.LocalTimestamp, &op.RetryCount, &op.DeviceID, &rollback)
	if err != nil {
		return nil, err
	}
	op.Type = shared.OpType(typ)
	op.Resource = shared.Resource(resource)
	if len(data) > 0 {
		op.Data = data
	}
	if len(rollback) > 0 {
		op.Rollback = &models.Record{}
		if err := json.Unmarshal(rollback, op.Rollback); err != nil {
			return nil, fmt.Errorf("decode rollback snapshot: %w", err)
		}
	}
	return &op, nil
}

func encodeRollback(r *models.Record) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *SQLiteRepository) one(ctx context.Context, where, arg string) (*models.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM operations WHERE `+where+` = ?`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return op, err
}

func (r *SQLiteRepository) Get(ctx context.Context, operationID string) (*models.Operation, error) {
	op, err := r.one(ctx, "operation_id", operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation[%s]: %w", operationID, err)
	}
	return op, nil
}

func (r *SQLiteRepository) FindByRecord(ctx context.Context, recordID string) (*models.Operation, error) {
	op, err := r.one(ctx, "record_id", recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find operation for record[%s]: %w", recordID, err)
	}
	return op, nil
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.Operation) error {
	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := NewSQLiteRepository(tx).FindByRecord(ctx, op.RecordID)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Coalesce(op)
			_, err := tx.ExecContext(ctx, `
				UPDATE operations
				SET operation_id = ?, type = ?, data = ?, device_id = ?, retry_count = 0
				WHERE seq = ?`,
				existing.OperationID, string(existing.Type), []byte(existing.Data), existing.DeviceID, existing.Seq)
			if err != nil {
				return err
			}
			*op = *existing
			return nil
		}

		rollback, err := encodeRollback(op.Rollback)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO operations (operation_id, type, resource, record_id, data, local_timestamp, retry_count, device_id, rollback)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING seq`,
			op.OperationID, string(op.Type), string(op.Resource), op.RecordID, []byte(op.Data),
			op.LocalTimestamp, op.RetryCount, op.DeviceID, rollback,
		).Scan(&op.Seq)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue operation[%s]: %w", op.OperationID, err)
	}
	return nil
}

func (r *SQLiteRepository) DequeueAccepted(ctx context.Context, operationIDs []string) error {
	if len(operationIDs) == 0 {
		return nil
	}
	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, id := range operationIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM operations WHERE operation_id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dequeue operations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, operationID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE operations SET retry_count = retry_count + 1 WHERE operation_id = ?`, operationID)
	if err != nil {
		return fmt.Errorf("failed to increment retry[%s]: %w", operationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment retry[%s]: %w", operationID, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to increment retry[%s]: %w", operationID, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Drain(ctx context.Context) ([]*models.Operation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM operations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to drain queue: %w", err)
	}
	defer rows.Close()

	var ops []*models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to drain queue: %w", err)
	}
	return ops, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}
