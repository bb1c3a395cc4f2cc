package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// Client is the remote side of a sync cycle.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Pull(ctx context.Context, lastPulledAt int64, schemaVersion int) (*shared.PullResponse, error)
	Push(ctx context.Context, req *shared.PushRequest) (*shared.PushResponse, error)
}

type Transport string

const (
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"
)

// New builds the client for transport.
func New(transport Transport, endpoint, accessToken, deviceID string) (Client, error) {
	switch transport {
	case TransportHTTP, "":
		return NewHTTPClient(endpoint, accessToken, deviceID, nil), nil
	case TransportGRPC:
		return NewGRPCClient(endpoint, accessToken, deviceID)
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
