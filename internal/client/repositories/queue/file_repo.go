package queue

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
	"github.com/dmitrijs2005/finkeeper/internal/common"
)

type FileRepository struct {
	x filedb.Executor
}

func NewFileRepository(x filedb.Executor) *FileRepository {
	return &FileRepository{x: x}
}

func cloneOp(op *models.Operation) *models.Operation {
	c := *op
	c.Rollback = op.Rollback.Clone()
	return &c
}

func (r *FileRepository) find(match func(*models.Operation) bool) (*models.Operation, error) {
	var out *models.Operation
	err := r.x.View(func(doc *filedb.Document) error {
		for _, op := range doc.Operations {
			if match(op) {
				out = cloneOp(op)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *FileRepository) Get(ctx context.Context, operationID string) (*models.Operation, error) {
	return r.find(func(op *models.Operation) bool { return op.OperationID == operationID })
}

func (r *FileRepository) FindByRecord(ctx context.Context, recordID string) (*models.Operation, error) {
	return r.find(func(op *models.Operation) bool { return op.RecordID == recordID })
}

func (r *FileRepository) Enqueue(ctx context.Context, op *models.Operation) error {
	return r.x.Update(func(doc *filedb.Document) error {
		for _, existing := range doc.Operations {
			if existing.RecordID == op.RecordID {
				existing.Coalesce(op)
				*op = *cloneOp(existing)
				return nil
			}
		}
		op.Seq = doc.NextSeq
		doc.NextSeq++
		doc.Operations = append(doc.Operations, cloneOp(op))
		return nil
	})
}

func (r *FileRepository) DequeueAccepted(ctx context.Context, operationIDs []string) error {
	if len(operationIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(operationIDs))
	for _, id := range operationIDs {
		drop[id] = struct{}{}
	}
	return r.x.Update(func(doc *filedb.Document) error {
		kept := doc.Operations[:0]
		for _, op := range doc.Operations {
			if _, ok := drop[op.OperationID]; !ok {
				kept = append(kept, op)
			}
		}
		doc.Operations = kept
		return nil
	})
}

func (r *FileRepository) IncrementRetry(ctx context.Context, operationID string) error {
	return r.x.Update(func(doc *filedb.Document) error {
		for _, op := range doc.Operations {
			if op.OperationID == operationID {
				op.RetryCount++
				return nil
			}
		}
		return fmt.Errorf("failed to increment retry[%s]: %w", operationID, common.ErrorNotFound)
	})
}

func (r *FileRepository) Drain(ctx context.Context) ([]*models.Operation, error) {
	var out []*models.Operation
	err := r.x.View(func(doc *filedb.Document) error {
		for _, op := range doc.Operations {
			out = append(out, cloneOp(op))
		}
		return nil
	})
	return out, err
}

func (r *FileRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.x.View(func(doc *filedb.Document) error {
		n = len(doc.Operations)
		return nil
	})
	return n, err
}
