// Package storage selects and opens the client's persistence backend and
// exposes the repositories the sync engine works with.
//
// Both backends give the same guarantees to callers: every repository call is
// atomic on its own, and WithinTx makes a group of calls atomic. The SQLite
// backend uses a single connection, so the engine's transactions are also its
// write serialization; the file backend holds its mutex for the duration of a
// transaction.
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
)

type Repositories struct {
	Records  records.Repository
	IDMap    idmap.Repository
	Queue    queue.Repository
	Metadata metadata.Repository
}

// Store is the storage seen by services and the sync coordinator.
type Store interface {
	Repos() *Repositories
	// WithinTx runs fn with repositories bound to one transaction. Nothing
	// fn wrote is visible if it returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
	Close() error
}

// Open creates the store for backend at path. For SQLite, path is a DSN
// (":memory:" works); for the file backend it is the JSON document path.
func Open(ctx context.Context, backend Backend, path string, clock timex.Clock) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return openSQLite(ctx, path, clock)
	case BackendFile:
		return openFile(ctx, path, clock)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
