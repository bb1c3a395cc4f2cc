package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

type HTTPClient struct {
	baseURL     string
	http        *http.Client
	accessToken string
	deviceID    string
}

// NewHTTPClient creates a client for endpoint ("host:port" or a full URL).
// A nil hc uses a fresh http.Client; timeouts come from the call contexts.
func NewHTTPClient(endpoint, accessToken, deviceID string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(endpoint, "/"),
		http:        hc,
		accessToken: accessToken,
		deviceID:    deviceID,
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp shared.PingResponse
	if err := c.do(ctx, http.MethodGet, "/ping", nil, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status, "ok") {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Pull(ctx context.Context, lastPulledAt int64, schemaVersion int) (*shared.PullResponse, error) {
	q := url.Values{}
	q.Set("lastPulledAt", strconv.FormatInt(lastPulledAt, 10))
	q.Set("schemaVersion", strconv.Itoa(schemaVersion))

	var resp shared.PullResponse
	if err := c.do(ctx, http.MethodGet, "/sync/pull?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Push(ctx context.Context, req *shared.PushRequest) (*shared.PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}

	var resp shared.PushResponse
	if err := c.do(ctx, http.MethodPost, "/sync/push", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.deviceID != "" {
		req.Header.Set(common.DeviceIDHeaderName, c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return nil
}

func mapStatus(resp *http.Response) error {
	var e shared.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	}
}
