// Package records implements the reference sync server: an in-memory record
// store with last-write-wins push handling and watermark-based pull.
package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	clock  timex.Clock
	logger logging.Logger

	// mu serializes pushes and pulls so the change clock and the watermark
	// handed to clients stay consistent.
	mu   sync.Mutex
	last int64
}

func NewService(repo Repository, clock timex.Clock, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{repo: repo, clock: clock, logger: logger.With("module", "records")}
}

// tick returns a strictly increasing server timestamp in Unix ms.
func (s *Service) tick() int64 {
	now := timex.NowMillis(s.clock)
	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return now
}

// Pull returns records changed after lastPulledAt for deviceID. A zero
// watermark yields a full snapshot of live records.
func (s *Service) Pull(ctx context.Context, deviceID string, lastPulledAt int64, schemaVersion int) (*shared.PullResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schemaVersion > 0 && schemaVersion != currentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrBadRequest, schemaVersion)
	}

	ts := s.tick()
	changes, err := s.changes(ctx, deviceID, lastPulledAt, ts, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "pull", "lastPulledAt", lastPulledAt, "records", changes.Len())
	return &shared.PullResponse{Changes: changes, Timestamp: ts}, nil
}

func (s *Service) changes(ctx context.Context, deviceID string, from, to int64, skip map[string]bool) (shared.Changes, error) {
	var c shared.Changes
	entries, err := s.repo.ChangedSince(ctx, from, to)
	if err != nil {
		return c, fmt.Errorf("failed to list changes[%d]: %w", from, err)
	}
	for _, e := range entries {
		if skip[e.ID] {
			continue
		}
		if from == 0 && e.IsDeleted {
			continue
		}
		c.Add(e.Resource, e.Wire(deviceID))
	}
	return c, nil
}

// Push applies operations in order. deviceID is the authenticated caller;
// when empty the device id carried by each operation is used.
func (s *Service) Push(ctx context.Context, deviceID string, req *shared.PushRequest) (*shared.PushResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &shared.PushResponse{}
	touched := make(map[string]bool)

	for _, op := range req.Operations {
		device := deviceID
		if device == "" {
			device = op.DeviceID
		}
		out, err := s.apply(ctx, device, op)
		if err != nil {
			return nil, err
		}
		switch {
		case out.accepted != nil:
			resp.Accepted = append(resp.Accepted, *out.accepted)
			if out.accepted.ID != "" {
				touched[out.accepted.ID] = true
			}
		case out.conflict != nil:
			resp.Conflicts = append(resp.Conflicts, *out.conflict)
		case out.rejected != nil:
			resp.Rejected = append(resp.Rejected, *out.rejected)
		}
	}

	ts := s.tick()
	serverData, err := s.changes(ctx, deviceID, req.LastPulledAt, ts, touched)
	if err != nil {
		return nil, err
	}
	resp.ServerData = serverData
	resp.CurrentTimestamp = ts

	s.logger.Info(ctx, "push",
		"device", deviceID,
		"accepted", len(resp.Accepted),
		"conflicts", len(resp.Conflicts),
		"rejected", len(resp.Rejected),
	)
	return resp, nil
}

type outcome struct {
	accepted *shared.Accepted
	conflict *shared.Conflict
	rejected *shared.Rejected
}

func reject(op shared.WireOperation, format string, args ...any) outcome {
	return outcome{rejected: &shared.Rejected{OperationID: op.OperationID, Error: fmt.Sprintf(format, args...)}}
}

func (s *Service) apply(ctx context.Context, deviceID string, op shared.WireOperation) (outcome, error) {
	if op.OperationID == "" {
		return reject(op, "operation id is required"), nil
	}
	if !op.Resource.Valid() {
		return reject(op, "unknown resource %q", op.Resource), nil
	}
	if !op.Type.Valid() {
		return reject(op, "unknown operation type %q", op.Type), nil
	}
	if op.Type != shared.OpDelete {
		if reason := validate(op); reason != "" {
			return reject(op, "%s", reason), nil
		}
	}

	current, err := s.target(ctx, deviceID, op)
	if err != nil {
		return outcome{}, err
	}
	if current != nil && current.Resource != op.Resource {
		return reject(op, "record %s is a %s", current.ID, current.Resource), nil
	}

	if op.Type == shared.OpDelete {
		if current == nil {
			return outcome{accepted: &shared.Accepted{OperationID: op.OperationID, ID: op.ServerID, UpdatedAt: op.UpdatedAt}}, nil
		}
		if current.IsDeleted && op.UpdatedAt >= current.UpdatedAt {
			return outcome{accepted: &shared.Accepted{OperationID: op.OperationID, ID: current.ID, UpdatedAt: current.UpdatedAt}}, nil
		}
	}

	if current == nil {
		if op.ServerID != "" {
			return reject(op, "unknown record %s", op.ServerID), nil
		}
		return s.create(ctx, deviceID, op)
	}

	// repeated create after a lost response
	if op.UpdatedAt == current.UpdatedAt && op.Type == shared.OpCreate {
		return outcome{accepted: &shared.Accepted{OperationID: op.OperationID, ID: current.ID, UpdatedAt: current.UpdatedAt}}, nil
	}

	if op.UpdatedAt <= current.UpdatedAt {
		w := current.Wire(deviceID)
		return outcome{conflict: &shared.Conflict{
			OperationID:     op.OperationID,
			Reason:          "server record is newer",
			ServerRecord:    &w,
			ServerUpdatedAt: current.UpdatedAt,
		}}, nil
	}

	current.UpdatedAt = op.UpdatedAt
	current.ChangedAt = s.tick()
	current.IsDeleted = op.Type == shared.OpDelete
	if !current.IsDeleted {
		current.Order = op.Order
		current.Data = op.Data
	} else {
		current.Order = nil
	}
	if err := s.repo.Put(ctx, current); err != nil {
		return outcome{}, fmt.Errorf("failed to store record[%s]: %w", current.ID, err)
	}
	return outcome{accepted: &shared.Accepted{OperationID: op.OperationID, ID: current.ID, UpdatedAt: current.UpdatedAt}}, nil
}

func (s *Service) target(ctx context.Context, deviceID string, op shared.WireOperation) (*Entry, error) {
	id := op.ServerID
	if id == "" {
		var err error
		id, err = s.repo.CreatedBy(ctx, deviceID, op.RecordID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up create[%s]: %w", op.RecordID, err)
		}
	}
	if id == "" {
		return nil, nil
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record[%s]: %w", id, err)
	}
	return e, nil
}

func (s *Service) create(ctx context.Context, deviceID string, op shared.WireOperation) (outcome, error) {
	e := &Entry{
		ID:        uuid.NewString(),
		Resource:  op.Resource,
		Order:     op.Order,
		UpdatedAt: op.UpdatedAt,
		ChangedAt: s.tick(),
		Data:      op.Data,
		CreatedBy: deviceID,
		CreatedAs: op.RecordID,
	}
	if err := s.repo.Put(ctx, e); err != nil {
		return outcome{}, fmt.Errorf("failed to store record[%s]: %w", e.ID, err)
	}
	if err := s.repo.RememberCreate(ctx, deviceID, op.RecordID, e.ID); err != nil {
		return outcome{}, fmt.Errorf("failed to remember create[%s]: %w", op.RecordID, err)
	}
	return outcome{accepted: &shared.Accepted{OperationID: op.OperationID, ID: e.ID, UpdatedAt: e.UpdatedAt}}, nil
}

func validate(op shared.WireOperation) string {
	if len(op.Data) == 0 {
		return "data is required"
	}
	p, err := shared.Unmarshal(op.Resource, op.Data)
	if err != nil {
		return fmt.Sprintf("malformed %s: %v", op.Resource, err)
	}
	if err := p.Validate(); err != nil {
		return err.Error()
	}
	return ""
}
