package records

import (
	"errors"

	"github.com/dmitrijs2005/finkeeper/internal/common"
)

// ErrBadRequest marks caller errors that map to 400 / InvalidArgument.
var ErrBadRequest = errors.New("bad request")

const currentSchemaVersion = common.SchemaVersion
