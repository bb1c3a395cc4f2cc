package shared

import "fmt"

// Resource names a record scope.
type Resource string

const (
	ResourceAccount     Resource = "account"
	ResourceCategory    Resource = "category"
	ResourceTransaction Resource = "transaction"
)

// Resources lists every syncable resource in merge order. Accounts and
// categories go first because transactions reference them.
var Resources = []Resource{ResourceAccount, ResourceCategory, ResourceTransaction}

func (r Resource) Valid() bool {
	switch r {
	case ResourceAccount, ResourceCategory, ResourceTransaction:
		return true
	}
	return false
}

// Ordered reports whether records of r carry a user-defined display order.
// Transactions are listed by recency instead.
func (r Resource) Ordered() bool {
	return r == ResourceAccount || r == ResourceCategory
}

func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown resource %q", s)
	}
	return r, nil
}

// OpType is the kind of a queued mutation.
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}
