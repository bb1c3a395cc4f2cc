package coordinator

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

var (
	// ErrOffline is returned by Sync when the network monitor reports offline.
	ErrOffline = errors.New("offline")
	// ErrSyncInProgress is returned by operations that cannot run while a
	// cycle is in flight.
	ErrSyncInProgress = errors.New("sync in progress")
)

// RejectedError reports an operation the server refused. The local mutation
// has been rolled back.
type RejectedError struct {
	OperationID string
	RecordID    string
	Resource    shared.Resource
	Reason      string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("operation %s on %s %s rejected: %s", e.OperationID, e.Resource, e.RecordID, e.Reason)
}

// SyncError wraps a failure of one phase of the cycle.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return "sync " + e.Op + ": " + e.Err.Error() }

func (e *SyncError) Unwrap() error { return e.Err }
