package records

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/common"
)

// checkPermutation verifies ids list every live record of the scope exactly
// once and returns the current order of each live record.
func checkPermutation(live []*models.Record, ids []string) (map[string]*int, error) {
	current := make(map[string]*int, len(live))
	for _, rec := range live {
		current[rec.ID] = rec.Order
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			return nil, fmt.Errorf("%w: record %q is not a live record of this scope", common.ErrInvalidOrder, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: record %q listed twice", common.ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != len(current) {
		var missing []string
		for _, rec := range live {
			if _, ok := seen[rec.ID]; !ok {
				missing = append(missing, rec.ID)
			}
		}
		return nil, fmt.Errorf("%w: records %q are missing from the new order", common.ErrInvalidOrder, missing)
	}
	return current, nil
}

func sortByUpdatedAt(recs []*models.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UpdatedAt != recs[j].UpdatedAt {
			return recs[i].UpdatedAt < recs[j].UpdatedAt
		}
		return recs[i].ID < recs[j].ID
	})
}
