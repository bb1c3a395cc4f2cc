package coordinator

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// Transactions reference accounts and categories. Locally the reference is
// the local id; on the wire it is the server id.

// outgoingData rewrites the references in data to server ids. ok is false
// while a referenced local record has no server id yet.
func outgoingData(ctx context.Context, r *storage.Repositories, res shared.Resource, data json.RawMessage) (json.RawMessage, bool, error) {
	if res != shared.ResourceTransaction || len(data) == 0 {
		return data, true, nil
	}
	tx, err := shared.Decode[shared.Transaction](data)
	if err != nil {
		// the server rejects it with a proper reason
		return data, true, nil
	}

	ready := true
	for _, ref := range []*string{&tx.AccountID, &tx.CategoryID} {
		if *ref == "" {
			continue
		}
		serverID, err := r.IDMap.Resolve(ctx, *ref)
		if err != nil {
			return nil, false, err
		}
		if serverID != "" {
			*ref = serverID
			continue
		}
		rec, err := r.Records.GetByID(ctx, *ref)
		if err != nil {
			return nil, false, err
		}
		if rec != nil {
			ready = false
		}
	}
	if !ready {
		return data, false, nil
	}
	out, err := shared.Marshal(tx)
	return out, true, err
}

// incomingData rewrites server ids in data to local ids where known.
func incomingData(ctx context.Context, r *storage.Repositories, res shared.Resource, data json.RawMessage) (json.RawMessage, error) {
	if res != shared.ResourceTransaction || len(data) == 0 {
		return data, nil
	}
	tx, err := shared.Decode[shared.Transaction](data)
	if err != nil {
		return data, nil
	}
	for _, ref := range []*string{&tx.AccountID, &tx.CategoryID} {
		if *ref == "" {
			continue
		}
		localID, err := r.IDMap.ResolveLocal(ctx, *ref)
		if err != nil {
			return nil, err
		}
		if localID != "" {
			*ref = localID
		}
	}
	return shared.Marshal(tx)
}

// fromWire is models.FromWire with references translated to local ids.
func fromWire(ctx context.Context, r *storage.Repositories, res shared.Resource, w shared.WireRecord) (*models.Record, error) {
	rec := models.FromWire(res, w)
	data, err := incomingData(ctx, r, res, rec.Data)
	if err != nil {
		return nil, err
	}
	rec.Data = data
	return rec, nil
}
