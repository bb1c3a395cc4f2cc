package shared

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestAccount_Validate(t *testing.T) {
	require.NoError(t, Account{Name: "Cash", Currency: "EUR"}.Validate())

	err := Account{Name: " ", Currency: "EURO"}.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestCategory_Validate(t *testing.T) {
	require.NoError(t, Category{Name: "Food", Kind: CategoryExpense}.Validate())
	require.Error(t, Category{Name: "Food", Kind: "other"}.Validate())
}

func TestTransaction_Validate(t *testing.T) {
	ok := Transaction{AccountID: "a1", Amount: decimal.RequireFromString("-12.50")}
	require.NoError(t, ok.Validate())

	err := Transaction{}.Validate()
	assert.Len(t, multierr.Errors(err), 2)
}

func TestMarshalUnmarshal_KeepsDecimalPrecision(t *testing.T) {
	in := Account{Name: "Cash", Currency: "USD", Balance: decimal.RequireFromString("10.10")}
	raw, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Cash","currency":"USD","balance":"10.1"}`, string(raw))

	p, err := Unmarshal(ResourceAccount, raw)
	require.NoError(t, err)
	out := p.(Account)
	assert.True(t, in.Balance.Equal(out.Balance))

	typed, err := Decode[Account](raw)
	require.NoError(t, err)
	assert.Equal(t, "Cash", typed.Name)

	_, err = Unmarshal("budget", raw)
	require.Error(t, err)
}

func TestChanges_AddForLen(t *testing.T) {
	var c Changes
	c.Add(ResourceAccount, WireRecord{ID: "a"})
	c.Add(ResourceTransaction, WireRecord{ID: "t"})
	c.Add(ResourceTransaction, WireRecord{ID: "t2"})

	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.For(ResourceTransaction), 2)
	assert.Empty(t, c.For(ResourceCategory))

	b, err := json.Marshal(PullResponse{Changes: c, Timestamp: 7})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":7`)
	assert.Contains(t, string(b), `"categories":null`)
}

func TestParseResource(t *testing.T) {
	r, err := ParseResource("category")
	require.NoError(t, err)
	assert.Equal(t, ResourceCategory, r)

	_, err = ParseResource("budget")
	require.Error(t, err)
	assert.False(t, OpType("MOVE").Valid())
	assert.True(t, OpDelete.Valid())
}
