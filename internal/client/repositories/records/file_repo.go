package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

type FileRepository struct {
	x     filedb.Executor
	clock timex.Clock
}

func NewFileRepository(x filedb.Executor, clock timex.Clock) *FileRepository {
	return &FileRepository{x: x, clock: clock}
}

func liveInScope(doc *filedb.Document, scope shared.Resource, includeDeleted bool) []*models.Record {
	var out []*models.Record
	for _, rec := range doc.Records {
		if rec.Resource != scope || (rec.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, rec.Clone())
	}
	models.SortRecords(out)
	return out
}

func (r *FileRepository) GetAll(ctx context.Context, scope shared.Resource, includeDeleted bool) ([]*models.Record, error) {
	var out []*models.Record
	err := r.x.View(func(doc *filedb.Document) error {
		out = liveInScope(doc, scope, includeDeleted)
		return nil
	})
	return out, err
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	var out *models.Record
	err := r.x.View(func(doc *filedb.Document) error {
		out = doc.Records[id].Clone()
		return nil
	})
	return out, err
}

func (r *FileRepository) GetByServerID(ctx context.Context, serverID string) (*models.Record, error) {
	var out *models.Record
	err := r.x.View(func(doc *filedb.Document) error {
		for _, rec := range doc.Records {
			if rec.ServerID != "" && rec.ServerID == serverID {
				out = rec.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func uniqueServerID(doc *filedb.Document, rec *models.Record) error {
	if rec.ServerID == "" {
		return nil
	}
	for id, other := range doc.Records {
		if id != rec.ID && other.ServerID == rec.ServerID {
			return fmt.Errorf("server id %q already used by record %q", rec.ServerID, id)
		}
	}
	return nil
}

func (r *FileRepository) Save(ctx context.Context, rec *models.Record) error {
	ts := max(timex.NowMillis(r.clock), rec.UpdatedAt)

	err := r.x.Update(func(doc *filedb.Document) error {
		if err := uniqueServerID(doc, rec); err != nil {
			return err
		}
		if prev, ok := doc.Records[rec.ID]; ok {
			ts = max(ts, prev.UpdatedAt+1)
		}
		stored := rec.Clone()
		stored.UpdatedAt = ts
		stored.Synced = false
		doc.Records[rec.ID] = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save record[%s]: %w", rec.ID, err)
	}

	rec.UpdatedAt = ts
	rec.Synced = false
	return nil
}

func (r *FileRepository) Put(ctx context.Context, rec *models.Record) error {
	err := r.x.Update(func(doc *filedb.Document) error {
		if err := uniqueServerID(doc, rec); err != nil {
			return err
		}
		doc.Records[rec.ID] = rec.Clone()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put record[%s]: %w", rec.ID, err)
	}
	return nil
}

func (r *FileRepository) SoftDelete(ctx context.Context, id string) (*models.Record, error) {
	now := timex.NowMillis(r.clock)

	var out *models.Record
	err := r.x.Update(func(doc *filedb.Document) error {
		rec, ok := doc.Records[id]
		if !ok {
			return common.ErrorNotFound
		}
		rec.IsDeleted = true
		rec.Synced = false
		rec.Order = nil
		rec.UpdatedAt = max(now, rec.UpdatedAt+1)
		out = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete record[%s]: %w", id, err)
	}
	return out, nil
}

func (r *FileRepository) Purge(ctx context.Context, id string) error {
	return r.x.Update(func(doc *filedb.Document) error {
		delete(doc.Records, id)
		return nil
	})
}

func (r *FileRepository) ReassignOrder(ctx context.Context, scope shared.Resource, ids []string) ([]*models.Record, error) {
	now := timex.NowMillis(r.clock)

	var changed []*models.Record
	err := r.x.Update(func(doc *filedb.Document) error {
		current, err := checkPermutation(liveInScope(doc, scope, false), ids)
		if err != nil {
			return err
		}
		for i, id := range ids {
			if o := current[id]; o != nil && *o == i {
				continue
			}
			rec := doc.Records[id]
			rec.Order = models.IntPtr(i)
			rec.Synced = false
			rec.UpdatedAt = max(now, rec.UpdatedAt+1)
			changed = append(changed, rec.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *FileRepository) ListUnsynced(ctx context.Context) ([]*models.Record, error) {
	var out []*models.Record
	err := r.x.View(func(doc *filedb.Document) error {
		for _, rec := range doc.Records {
			if !rec.Synced {
				out = append(out, rec.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByUpdatedAt(out)
	return out, nil
}

func (r *FileRepository) Clear(ctx context.Context) error {
	return r.x.Update(func(doc *filedb.Document) error {
		for id := range doc.Records {
			delete(doc.Records, id)
		}
		return nil
	})
}
