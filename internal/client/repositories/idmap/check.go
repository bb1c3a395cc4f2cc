package idmap

import (
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/common"
)

// checkMapping validates localID -> serverID against the current server id
// of localID (existing) and the current owner of serverID (owner).
func checkMapping(localID, serverID, existing, owner string) error {
	if localID == "" || serverID == "" {
		return fmt.Errorf("%w: empty id (%q -> %q)", common.ErrMappingConflict, localID, serverID)
	}
	if existing != "" && existing != serverID {
		return fmt.Errorf("%w: %s already mapped to %s, refusing %s", common.ErrMappingConflict, localID, existing, serverID)
	}
	if owner != "" && owner != localID {
		return fmt.Errorf("%w: server id %s already bound to %s", common.ErrMappingConflict, serverID, owner)
	}
	return nil
}
