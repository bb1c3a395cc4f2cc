package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/server/auth"
	"github.com/dmitrijs2005/finkeeper/internal/server/records"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(secret string) *httptest.Server {
	rs := records.NewService(records.NewMemoryRepository(), timex.SystemClock{}, nil)
	return httptest.NewServer(NewHTTPServer("", logging.NewNop(), rs, secret).Handler())
}

const pushBody = `{"lastPulledAt":0,"operations":[{"operationId":"op1","type":"CREATE","resource":"account",
"recordId":"L1","updatedAt":10,"localTimestamp":10,"deviceId":"d1","data":{"name":"Cash","currency":"EUR","balance":"1.50"}}]}`

func TestPing(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body shared.PingResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestPushThenPull(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/sync/push", "application/json", strings.NewReader(pushBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pushed shared.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pushed))
	require.Len(t, pushed.Accepted, 1)

	resp2, err := http.Get(ts.URL + "/sync/pull?lastPulledAt=0&schemaVersion=1")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var pulled shared.PullResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&pulled))
	require.Len(t, pulled.Changes.Accounts, 1)
	assert.Equal(t, pushed.Accepted[0].ID, pulled.Changes.Accounts[0].ID)
	assert.NotZero(t, pulled.Timestamp)
}

func TestPull_BadQuery(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	for _, q := range []string{"lastPulledAt=abc", "lastPulledAt=-1", "schemaVersion=42"} {
		resp, err := http.Get(ts.URL + "/sync/pull?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPush_Malformed(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/sync/push", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body shared.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "malformed push request", body.Error)
}

func TestAuth(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	good, err := auth.GenerateToken("d1", []byte("secret"), time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateToken("d1", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		error  string
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized, error: "missing token"},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, error: common.ErrInvalidToken.Error()},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized, error: common.ErrTokenExpired.Error()},
		{name: "valid", header: "Bearer " + good, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/sync/pull", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.error != "" {
				var body shared.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.error, body.Error)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/ping", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
