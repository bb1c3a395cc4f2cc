package records

import "context"

// Repository stores server entries.
type Repository interface {
	Get(ctx context.Context, id string) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	// ChangedSince returns entries with from < ChangedAt <= to, oldest first.
	ChangedSince(ctx context.Context, from, to int64) ([]*Entry, error)

	// CreatedBy returns the entry id created for (deviceID, recordID), or "".
	CreatedBy(ctx context.Context, deviceID, recordID string) (string, error)
	RememberCreate(ctx context.Context, deviceID, recordID, id string) error
}
