package shared

import "encoding/json"

// WireRecord is a record as exchanged with the server. On pull ID is the
// server id. LocalID is echoed back only for records the caller created.
type WireRecord struct {
	ID        string          `json:"id"`
	LocalID   string          `json:"localId,omitempty"`
	Order     *int            `json:"order,omitempty"`
	UpdatedAt int64           `json:"updatedAt"`
	IsDeleted bool            `json:"isDeleted"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Changes groups records by resource.
type Changes struct {
	Accounts     []WireRecord `json:"accounts"`
	Categories   []WireRecord `json:"categories"`
	Transactions []WireRecord `json:"transactions"`
}

// For returns the slice for resource r.
func (c *Changes) For(r Resource) []WireRecord {
	switch r {
	case ResourceAccount:
		return c.Accounts
	case ResourceCategory:
		return c.Categories
	case ResourceTransaction:
		return c.Transactions
	}
	return nil
}

// Add appends rec under resource r.
func (c *Changes) Add(r Resource, rec WireRecord) {
	switch r {
	case ResourceAccount:
		c.Accounts = append(c.Accounts, rec)
	case ResourceCategory:
		c.Categories = append(c.Categories, rec)
	case ResourceTransaction:
		c.Transactions = append(c.Transactions, rec)
	}
}

func (c *Changes) Len() int {
	return len(c.Accounts) + len(c.Categories) + len(c.Transactions)
}

// PullRequest carries the pull parameters over transports without a query
// string.
type PullRequest struct {
	LastPulledAt  int64 `json:"lastPulledAt"`
	SchemaVersion int   `json:"schemaVersion"`
}

type PullResponse struct {
	Changes   Changes `json:"changes"`
	Timestamp int64   `json:"timestamp"`
}

// WireOperation is a queued mutation. RecordID is the client's local id;
// ServerID is set once the record is mapped.
type WireOperation struct {
	OperationID    string          `json:"operationId"`
	Type           OpType          `json:"type"`
	Resource       Resource        `json:"resource"`
	RecordID       string          `json:"recordId"`
	ServerID       string          `json:"serverId,omitempty"`
	Order          *int            `json:"order,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	UpdatedAt      int64           `json:"updatedAt"`
	LocalTimestamp int64           `json:"localTimestamp"`
	RetryCount     int             `json:"retryCount"`
	DeviceID       string          `json:"deviceId"`
}

type PushRequest struct {
	Operations   []WireOperation `json:"operations"`
	LastPulledAt int64           `json:"lastPulledAt"`
}

type Accepted struct {
	OperationID string `json:"operationId"`
	ID          string `json:"id"`
	UpdatedAt   int64  `json:"updatedAt"`
}

type Conflict struct {
	OperationID     string      `json:"operationId"`
	Reason          string      `json:"reason"`
	ServerRecord    *WireRecord `json:"serverRecord,omitempty"`
	ServerUpdatedAt int64       `json:"serverUpdatedAt"`
}

type Rejected struct {
	OperationID string `json:"operationId"`
	Error       string `json:"error"`
}

type PushResponse struct {
	Accepted         []Accepted `json:"accepted"`
	Conflicts        []Conflict `json:"conflicts"`
	Rejected         []Rejected `json:"rejected"`
	ServerData       Changes    `json:"serverData"`
	CurrentTimestamp int64      `json:"currentTimestamp"`
}

// PingResponse is the liveness reply.
type PingResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
