// Package queue is the Offline Operation Queue: the ordered log of mutation
// intents waiting to be pushed.
//
// The queue holds at most one entry per record. Enqueueing a second intent
// for the same record folds it into the existing entry (see
// models.Operation.Coalesce), so the entry keeps its place and original
// local timestamp while carrying the latest data.
package queue

import (
	"context"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
)

type Repository interface {
	// Enqueue appends op or coalesces it into the entry for op.RecordID.
	// On return op reflects the stored entry.
	Enqueue(ctx context.Context, op *models.Operation) error
	// DequeueAccepted removes the given operations. Unknown ids are ignored.
	DequeueAccepted(ctx context.Context, operationIDs []string) error
	// IncrementRetry bumps the retry counter; common.ErrorNotFound if absent.
	IncrementRetry(ctx context.Context, operationID string) error
	// Drain returns a snapshot of all entries in submission order.
	Drain(ctx context.Context) ([]*models.Operation, error)

	Get(ctx context.Context, operationID string) (*models.Operation, error)
	FindByRecord(ctx context.Context, recordID string) (*models.Operation, error)
	Count(ctx context.Context) (int, error)
}
