package records

import (
	"context"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

type Repository interface {
	// GetAll returns the records of scope sorted by order (unordered last),
	// then updatedAt descending.
	GetAll(ctx context.Context, scope shared.Resource, includeDeleted bool) ([]*models.Record, error)
	GetByID(ctx context.Context, id string) (*models.Record, error)
	GetByServerID(ctx context.Context, serverID string) (*models.Record, error)

	// Save upserts a local mutation. It sets UpdatedAt to a value greater than
	// any previously stored for the id and not less than the clock, marks the
	// record unsynced, and writes both back into rec.
	Save(ctx context.Context, rec *models.Record) error
	// Put stores rec exactly as given. Used when applying server state.
	Put(ctx context.Context, rec *models.Record) error

	// SoftDelete tombstones id and returns the new state.
	SoftDelete(ctx context.Context, id string) (*models.Record, error)
	Purge(ctx context.Context, id string) error

	// ReassignOrder sets order 0..N-1 on exactly ids (live records of scope)
	// and returns the records whose order changed.
	ReassignOrder(ctx context.Context, scope shared.Resource, ids []string) ([]*models.Record, error)

	ListUnsynced(ctx context.Context) ([]*models.Record, error)
	Clear(ctx context.Context) error
}
