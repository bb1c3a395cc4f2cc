package coordinator

import (
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/resolver"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// State is the phase of the sync state machine.
type State string

const (
	StateIdle    State = "idle"
	StatePulling State = "pulling"
	StateMerging State = "merging"
	StatePushing State = "pushing"
	StateError   State = "error"
)

// Status summarizes how a Sync call ended.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusOffline Status = "offline"
	StatusFailed  Status = "failed"
)

// ConflictRecord describes one conflict settled by the resolver.
type ConflictRecord struct {
	OperationID string
	RecordID    string
	Resource    shared.Resource
	Outcome     resolver.Outcome
	Reason      string
}

// SyncResult accounts for every operation that was in the pushed snapshot:
// each ends up in Accepted, Conflicts, Rejected or Retried.
type SyncResult struct {
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time

	// Pulled counts server records merged from the pull response.
	Pulled int
	// Pushed counts operations sent.
	Pushed int
	// Merged counts server records merged from the push response.
	Merged int

	Accepted  []string
	Conflicts []ConflictRecord
	Rejected  []*RejectedError
	Retried   []string

	// Watermark is lastPulledAt after the cycle.
	Watermark int64
	// NextRetryIn is set when a transient failure scheduled a retry.
	NextRetryIn time.Duration
	Err         error
}
