package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/resolver"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/google/uuid"
)

func newLocalID() string { return uuid.NewString() }

// applyPushResult settles every pushed operation: accepted, conflict,
// rejected, or left queued with its retry counter bumped.
func (c *Coordinator) applyPushResult(ctx context.Context, ops []*models.Operation, resp *shared.PushResponse, res *SyncResult) error {
	byID := make(map[string]*models.Operation, len(ops))
	for _, op := range ops {
		byID[op.OperationID] = op
	}
	settled := make(map[string]bool, len(ops))

	for _, acc := range resp.Accepted {
		op, ok := byID[acc.OperationID]
		if !ok || settled[acc.OperationID] {
			continue
		}
		settled[acc.OperationID] = true
		err := c.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
			return c.accept(ctx, r, op, acc, res)
		})
		if err != nil {
			return fmt.Errorf("accept %s: %w", acc.OperationID, err)
		}
	}

	for _, cf := range resp.Conflicts {
		op, ok := byID[cf.OperationID]
		if !ok || settled[cf.OperationID] {
			continue
		}
		settled[cf.OperationID] = true
		err := c.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
			return c.conflict(ctx, r, op, cf, res)
		})
		if err != nil {
			return fmt.Errorf("conflict %s: %w", cf.OperationID, err)
		}
	}

	for _, rj := range resp.Rejected {
		op, ok := byID[rj.OperationID]
		if !ok || settled[rj.OperationID] {
			continue
		}
		settled[rj.OperationID] = true
		err := c.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
			return c.reject(ctx, r, op, rj, res)
		})
		if err != nil {
			return fmt.Errorf("reject %s: %w", rj.OperationID, err)
		}
	}

	for _, op := range ops {
		if settled[op.OperationID] {
			continue
		}
		err := c.store.Repos().Queue.IncrementRetry(ctx, op.OperationID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		res.Retried = append(res.Retried, op.OperationID)
		c.logger.Warn(ctx, "operation not settled by server, kept queued", "operationId", op.OperationID, "recordId", op.RecordID)
	}
	return nil
}

func (c *Coordinator) accept(ctx context.Context, r *storage.Repositories, op *models.Operation, acc shared.Accepted, res *SyncResult) error {
	if acc.ID != "" {
		err := r.IDMap.Map(ctx, op.RecordID, acc.ID)
		if errors.Is(err, common.ErrMappingConflict) {
			c.logger.Error(ctx, "id mapping refused", "localId", op.RecordID, "serverId", acc.ID, "error", err)
			if err := r.Queue.IncrementRetry(ctx, op.OperationID); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			res.Retried = append(res.Retried, op.OperationID)
			return nil
		}
		if err != nil {
			return err
		}
	}

	if err := r.Queue.DequeueAccepted(ctx, []string{op.OperationID}); err != nil {
		return err
	}
	res.Accepted = append(res.Accepted, op.OperationID)

	// a mutation made while the push was in flight is coalesced under a new
	// operation id and stays queued
	pending, err := r.Queue.FindByRecord(ctx, op.RecordID)
	if err != nil {
		return err
	}

	rec, err := r.Records.GetByID(ctx, op.RecordID)
	if err != nil || rec == nil {
		return err
	}
	if acc.ID != "" {
		rec.ServerID = acc.ID
	}
	rec.ServerUpdatedAt = models.Int64Ptr(acc.UpdatedAt)
	rec.Synced = rec.UpdatedAt <= acc.UpdatedAt && pending == nil

	if rec.IsDeleted && rec.Synced {
		return r.Records.Purge(ctx, rec.ID)
	}
	return r.Records.Put(ctx, rec)
}

func (c *Coordinator) conflict(ctx context.Context, r *storage.Repositories, op *models.Operation, cf shared.Conflict, res *SyncResult) error {
	if err := r.Queue.DequeueAccepted(ctx, []string{op.OperationID}); err != nil {
		return err
	}
	pending, err := r.Queue.FindByRecord(ctx, op.RecordID)
	if err != nil {
		return err
	}
	local, err := r.Records.GetByID(ctx, op.RecordID)
	if err != nil {
		return err
	}

	var server *models.Record
	if cf.ServerRecord != nil {
		if server, err = fromWire(ctx, r, op.Resource, *cf.ServerRecord); err != nil {
			return err
		}
	}

	resolution := resolver.Resolve(local, server)
	if local == nil && resolution.Outcome == resolver.Created {
		// the local record is gone; the server copy arrives with a later merge
		resolution = resolver.Resolution{Outcome: resolver.Drop}
	}
	if _, err := c.apply(ctx, r, local, server, pending, resolution); err != nil {
		return err
	}

	c.recordConflict(ctx, res, ConflictRecord{
		OperationID: op.OperationID,
		RecordID:    op.RecordID,
		Resource:    op.Resource,
		Outcome:     resolution.Outcome,
		Reason:      cf.Reason,
	})
	return nil
}

func (c *Coordinator) reject(ctx context.Context, r *storage.Repositories, op *models.Operation, rj shared.Rejected, res *SyncResult) error {
	if err := r.Queue.DequeueAccepted(ctx, []string{op.OperationID}); err != nil {
		return err
	}
	pending, err := r.Queue.FindByRecord(ctx, op.RecordID)
	if err != nil {
		return err
	}

	// a newer queued mutation supersedes the rejected one and gets its own
	// verdict on the next push
	if pending == nil {
		if op.Rollback != nil {
			if err := r.Records.Put(ctx, op.Rollback.Clone()); err != nil {
				return err
			}
		} else if err := r.Records.Purge(ctx, op.RecordID); err != nil {
			return err
		}
	}

	rerr := &RejectedError{
		OperationID: op.OperationID,
		RecordID:    op.RecordID,
		Resource:    op.Resource,
		Reason:      rj.Error,
	}
	res.Rejected = append(res.Rejected, rerr)
	c.logger.Warn(ctx, "operation rejected", "operationId", op.OperationID, "recordId", op.RecordID, "reason", rj.Error)
	return nil
}
