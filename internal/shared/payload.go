package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Payload is implemented by every resource body.
type Payload interface {
	Resource() Resource
	Validate() error
}

// Account is a money container, e.g. "Cash" or "Visa".
type Account struct {
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

func (Account) Resource() Resource { return ResourceAccount }

func (a Account) Validate() error {
	var err error
	if strings.TrimSpace(a.Name) == "" {
		err = multierr.Append(err, errors.New("account name is required"))
	}
	if a.Currency != "" && len(a.Currency) != 3 {
		err = multierr.Append(err, fmt.Errorf("currency %q must be a 3-letter code", a.Currency))
	}
	return err
}

type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

type Category struct {
	Name  string       `json:"name"`
	Kind  CategoryKind `json:"kind"`
	Color string       `json:"color,omitempty"`
}

func (Category) Resource() Resource { return ResourceCategory }

func (c Category) Validate() error {
	var err error
	if strings.TrimSpace(c.Name) == "" {
		err = multierr.Append(err, errors.New("category name is required"))
	}
	if c.Kind != CategoryIncome && c.Kind != CategoryExpense {
		err = multierr.Append(err, fmt.Errorf("category kind %q must be income or expense", c.Kind))
	}
	return err
}

// Transaction moves Amount on AccountID. OccurredAt is Unix milliseconds.
type Transaction struct {
	AccountID  string          `json:"accountId"`
	CategoryID string          `json:"categoryId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	OccurredAt int64           `json:"occurredAt"`
}

func (Transaction) Resource() Resource { return ResourceTransaction }

func (t Transaction) Validate() error {
	var err error
	if t.AccountID == "" {
		err = multierr.Append(err, errors.New("transaction account is required"))
	}
	if t.Amount.IsZero() {
		err = multierr.Append(err, errors.New("transaction amount must be non-zero"))
	}
	return err
}

// Marshal encodes a payload for storage in a record.
func Marshal(p Payload) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.Resource(), err)
	}
	return b, nil
}

// Unmarshal decodes raw record data into the payload type of r.
func Unmarshal(r Resource, data json.RawMessage) (Payload, error) {
	switch r {
	case ResourceAccount:
		var v Account
		return v, json.Unmarshal(data, &v)
	case ResourceCategory:
		var v Category
		return v, json.Unmarshal(data, &v)
	case ResourceTransaction:
		var v Transaction
		return v, json.Unmarshal(data, &v)
	default:
		return nil, fmt.Errorf("unknown resource %q", r)
	}
}

// Decode is the typed counterpart of Unmarshal.
func Decode[T Payload](data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
