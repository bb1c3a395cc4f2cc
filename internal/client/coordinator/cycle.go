package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/resolver"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

func (c *Coordinator) cycle(ctx context.Context, res *SyncResult) error {
	repos := c.store.Repos()

	watermark, err := metadata.LastPulledAt(ctx, repos.Metadata)
	if err != nil {
		return &SyncError{Op: "load watermark", Err: err}
	}

	c.setState(StatePulling)
	pull, err := c.pull(ctx, watermark)
	if err != nil {
		return &SyncError{Op: "pull", Err: err}
	}

	c.setState(StateMerging)
	n, err := c.mergeChanges(ctx, &pull.Changes, res)
	if err != nil {
		return &SyncError{Op: "merge", Err: err}
	}
	res.Pulled = n
	if watermark == 0 {
		if err := c.reconcileSnapshot(ctx, &pull.Changes, res); err != nil {
			return &SyncError{Op: "reconcile", Err: err}
		}
	}

	next := pull.Timestamp
	sent := make(map[string]bool)
	for round := 0; round < maxPushRounds; round++ {
		ops, err := repos.Queue.Drain(ctx)
		if err != nil {
			return &SyncError{Op: "drain queue", Err: err}
		}
		req, batch, held, err := c.pushRequest(ctx, ops, sent, next)
		if err != nil {
			return &SyncError{Op: "push", Err: err}
		}
		if len(batch) == 0 {
			break
		}

		c.setState(StatePushing)
		resp, err := c.push(ctx, req)
		if err != nil {
			return &SyncError{Op: "push", Err: err}
		}
		res.Pushed += len(batch)

		c.setState(StateMerging)
		if err := c.applyPushResult(ctx, batch, resp, res); err != nil {
			return &SyncError{Op: "apply push result", Err: err}
		}
		n, err := c.mergeChanges(ctx, &resp.ServerData, res)
		if err != nil {
			return &SyncError{Op: "merge", Err: err}
		}
		res.Merged += n
		next = resp.CurrentTimestamp

		if held == 0 {
			break
		}
	}

	if err := metadata.RecordSync(ctx, repos.Metadata, metadata.SyncMark{Watermark: next, SyncedAt: c.clock.Now()}); err != nil {
		return &SyncError{Op: "store watermark", Err: err}
	}
	res.Watermark = next
	return nil
}

func (c *Coordinator) pull(ctx context.Context, watermark int64) (*shared.PullResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return c.client.Pull(ctx, watermark, c.opts.SchemaVersion)
}

func (c *Coordinator) push(ctx context.Context, req *shared.PushRequest) (*shared.PushResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return c.client.Push(ctx, req)
}

// maxPushRounds bounds the pushes of one cycle. A second round sends the
// operations held back because they referenced records created in the first.
const maxPushRounds = 2

// pushRequest renders the queue snapshot with the records' current state.
// Operations already sent in this cycle are skipped; operations whose
// references are not mapped yet are held back and counted.
func (c *Coordinator) pushRequest(ctx context.Context, ops []*models.Operation, sent map[string]bool, lastPulledAt int64) (*shared.PushRequest, []*models.Operation, int, error) {
	repos := c.store.Repos()
	req := &shared.PushRequest{LastPulledAt: lastPulledAt}
	var (
		batch []*models.Operation
		held  int
	)
	for _, op := range ops {
		if sent[op.OperationID] {
			continue
		}
		rec, err := repos.Records.GetByID(ctx, op.RecordID)
		if err != nil {
			return nil, nil, 0, err
		}
		serverID, err := repos.IDMap.Resolve(ctx, op.RecordID)
		if err != nil {
			return nil, nil, 0, err
		}
		if serverID == "" && rec != nil {
			serverID = rec.ServerID
		}

		w := op.ToWire(rec, serverID)
		if w.Type != shared.OpDelete {
			data, ready, err := outgoingData(ctx, repos, w.Resource, w.Data)
			if err != nil {
				return nil, nil, 0, err
			}
			if !ready {
				held++
				continue
			}
			w.Data = data
		}

		sent[op.OperationID] = true
		batch = append(batch, op)
		req.Operations = append(req.Operations, w)
	}
	return req, batch, held, nil
}

// mergeChanges merges server records one transaction at a time, so an
// interrupted merge keeps what it already applied and the next cycle
// repeats the rest.
func (c *Coordinator) mergeChanges(ctx context.Context, changes *shared.Changes, res *SyncResult) (int, error) {
	n := 0
	for _, resource := range shared.Resources {
		for _, w := range changes.For(resource) {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			err := c.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
				server, err := fromWire(ctx, r, resource, w)
				if err != nil {
					return err
				}
				return c.mergeOne(ctx, r, server, w.LocalID, res)
			})
			if err != nil {
				return n, fmt.Errorf("merge %s %s: %w", resource, w.ID, err)
			}
			n++
		}
	}
	return n, nil
}

// mergeOne merges one server record. createdAs is this device's local id
// for records it created, as echoed by the server.
func (c *Coordinator) mergeOne(ctx context.Context, r *storage.Repositories, server *models.Record, createdAs string, res *SyncResult) error {
	local, mappedID, err := c.findLocal(ctx, r, server.ServerID)
	if err != nil {
		return err
	}
	adopted := false
	if local == nil && mappedID == "" && createdAs != "" {
		// the push response that carried the server id was lost
		if local, err = c.unboundCreate(ctx, r, createdAs, server.Resource); err != nil {
			return err
		}
		adopted = local != nil
	}

	var pending *models.Operation
	if local != nil {
		if pending, err = r.Queue.FindByRecord(ctx, local.ID); err != nil {
			return err
		}
	}

	resolution := resolver.Resolve(local, server)
	if resolution.Outcome == resolver.Created && mappedID != "" {
		// purged locally, revived on the server: keep the bound local id
		resolution.Record.ID = mappedID
	}
	superseded, err := c.apply(ctx, r, local, server, pending, resolution)
	if err != nil {
		return err
	}
	if superseded && adopted && local.UpdatedAt == server.UpdatedAt {
		c.logger.Info(ctx, "create confirmed by pull", "recordId", local.ID, "serverId", server.ServerID)
		return nil
	}
	if superseded {
		c.recordConflict(ctx, res, ConflictRecord{
			OperationID: pending.OperationID,
			RecordID:    local.ID,
			Resource:    local.Resource,
			Outcome:     resolution.Outcome,
			Reason:      "superseded by a newer server version",
		})
	}
	return nil
}

// findLocal returns the local record bound to serverID through the id map,
// falling back to the record's own serverId column, and the mapped local id.
func (c *Coordinator) findLocal(ctx context.Context, r *storage.Repositories, serverID string) (*models.Record, string, error) {
	localID, err := r.IDMap.ResolveLocal(ctx, serverID)
	if err != nil {
		return nil, "", err
	}
	if localID != "" {
		rec, err := r.Records.GetByID(ctx, localID)
		return rec, localID, err
	}
	rec, err := r.Records.GetByServerID(ctx, serverID)
	return rec, "", err
}

// unboundCreate returns the local record named id when it is a not yet
// mapped record of resource, nil otherwise.
func (c *Coordinator) unboundCreate(ctx context.Context, r *storage.Repositories, id string, resource shared.Resource) (*models.Record, error) {
	serverID, err := r.IDMap.Resolve(ctx, id)
	if err != nil || serverID != "" {
		return nil, err
	}
	rec, err := r.Records.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.ServerID != "" || rec.Resource != resource {
		return nil, nil
	}
	return rec, nil
}

// reconcileSnapshot drops synced records a full snapshot no longer contains.
func (c *Coordinator) reconcileSnapshot(ctx context.Context, changes *shared.Changes, res *SyncResult) error {
	seen := make(map[string]bool, changes.Len())
	for _, resource := range shared.Resources {
		for _, w := range changes.For(resource) {
			seen[w.ID] = true
		}
	}

	for _, resource := range shared.Resources {
		recs, err := c.store.Repos().Records.GetAll(ctx, resource, true)
		if err != nil {
			return err
		}
		for _, local := range recs {
			if local.ServerID == "" || seen[local.ServerID] || !local.Synced {
				continue
			}
			err := c.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
				pending, err := r.Queue.FindByRecord(ctx, local.ID)
				if err != nil {
					return err
				}
				_, err = c.apply(ctx, r, local, nil, pending, resolver.Resolve(local, nil))
				return err
			})
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", local.ID, err)
			}
		}
	}
	return nil
}

// apply stores a resolution. It reports whether a queued operation for the
// record was dropped because the server version won.
func (c *Coordinator) apply(ctx context.Context, r *storage.Repositories, local, server *models.Record, pending *models.Operation, res resolver.Resolution) (bool, error) {
	switch res.Outcome {
	case resolver.Drop:
		if local == nil {
			return false, nil
		}
		dropped := pending != nil
		if dropped {
			if err := r.Queue.DequeueAccepted(ctx, []string{pending.OperationID}); err != nil {
				return false, err
			}
		}
		return dropped, r.Records.Purge(ctx, local.ID)

	case resolver.Created:
		rec := res.Record
		if rec.ID == "" {
			rec.ID = newLocalID()
		}
		if err := r.Records.Put(ctx, rec); err != nil {
			return false, err
		}
		return false, c.mapID(ctx, r, rec.ID, rec.ServerID)

	case resolver.ServerWins:
		rec := res.Record
		if err := c.mapID(ctx, r, rec.ID, rec.ServerID); err != nil {
			return false, err
		}
		dropped := pending != nil
		if dropped {
			if err := r.Queue.DequeueAccepted(ctx, []string{pending.OperationID}); err != nil {
				return false, err
			}
		}

		if !rec.IsDeleted && !sameOrder(rec.Order, server.Order) {
			// the kept local order still has to reach the server
			rec.UpdatedAt = server.UpdatedAt + 1
			rec.Synced = false
			if err := r.Records.Put(ctx, rec); err != nil {
				return false, err
			}
			return dropped, c.enqueue(ctx, r, rec, serverView(rec.ID, server))
		}

		if rec.IsDeleted {
			return dropped, r.Records.Purge(ctx, rec.ID)
		}
		return dropped, r.Records.Put(ctx, rec)

	default: // KeepLocal, KeepTombstone, LocalWins
		rec := res.Record
		if err := c.mapID(ctx, r, rec.ID, rec.ServerID); err != nil {
			return false, err
		}
		if err := r.Records.Put(ctx, rec); err != nil {
			return false, err
		}
		if rec.Synced || pending != nil {
			return false, nil
		}
		return false, c.enqueue(ctx, r, rec, serverView(rec.ID, server))
	}
}

func (c *Coordinator) enqueue(ctx context.Context, r *storage.Repositories, rec *models.Record, rollback *models.Record) error {
	op := models.NewOperation(models.PendingType(rec), rec, c.opts.DeviceID, timex.NowMillis(c.clock))
	op.Rollback = rollback
	return r.Queue.Enqueue(ctx, op)
}

// mapID binds localID to serverID. A conflicting binding is refused and
// logged; the record keeps working under its local id.
func (c *Coordinator) mapID(ctx context.Context, r *storage.Repositories, localID, serverID string) error {
	if localID == "" || serverID == "" {
		return nil
	}
	err := r.IDMap.Map(ctx, localID, serverID)
	if errors.Is(err, common.ErrMappingConflict) {
		c.logger.Error(ctx, "id mapping refused", "localId", localID, "serverId", serverID, "error", err)
		return nil
	}
	return err
}

func (c *Coordinator) recordConflict(ctx context.Context, res *SyncResult, cr ConflictRecord) {
	res.Conflicts = append(res.Conflicts, cr)
	c.logger.Info(ctx, "conflict resolved",
		"operationId", cr.OperationID, "recordId", cr.RecordID,
		"resource", cr.Resource, "outcome", cr.Outcome, "reason", cr.Reason)
}

// serverView is the server copy of a record under its local id, used as the
// rollback snapshot of operations enqueued during merge.
func serverView(localID string, server *models.Record) *models.Record {
	if server == nil {
		return nil
	}
	v := server.Clone()
	v.ID = localID
	return v
}

func sameOrder(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
