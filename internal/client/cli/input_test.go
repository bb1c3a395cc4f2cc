package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetTextOrDefault(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		current string
		want    string
		prompt  string
	}{
		{name: "empty keeps current", input: "\n", current: "Cash", want: "Cash", prompt: "Name [Cash]\n> "},
		{name: "input replaces current", input: "Wallet\n", current: "Cash", want: "Wallet", prompt: "Name [Cash]\n> "},
		{name: "no current", input: "\n", current: "", want: "", prompt: "Name\n> "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetTextOrDefault(rdr(tc.input), "Name", tc.current, &out)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.prompt, out.String())
		})
	}
}

func TestGetDecimal(t *testing.T) {
	var out bytes.Buffer

	got, err := GetDecimal(rdr("-12.50\n"), "Amount", decimal.Zero, &out)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-12.5").Equal(got))

	got, err = GetDecimal(rdr("\n"), "Amount", decimal.NewFromInt(7), &out)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(7).Equal(got))

	_, err = GetDecimal(rdr("ten\n"), "Amount", decimal.Zero, &out)
	require.EqualError(t, err, `invalid amount "ten"`)
}

func TestInteractive_UsesTerminalCheck(t *testing.T) {
	old := isTerminal
	t.Cleanup(func() { isTerminal = old })

	isTerminal = func(int) bool { return true }
	assert.True(t, interactive())
	isTerminal = func(int) bool { return false }
	assert.False(t, interactive())
}
