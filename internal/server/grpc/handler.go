package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/finkeeper/internal/server/auth"
	"github.com/dmitrijs2005/finkeeper/internal/server/records"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Ping(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}

func (s *GRPCServer) Pull(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {

	var in shared.PullRequest
	if err := json.Unmarshal(req.GetValue(), &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed pull request")
	}

	resp, err := s.records.Pull(ctx, auth.DeviceIDFromContext(ctx), in.LastPulledAt, in.SchemaVersion)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return s.encode(ctx, resp)
}

func (s *GRPCServer) Push(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {

	var in shared.PushRequest
	if err := json.Unmarshal(req.GetValue(), &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed push request")
	}

	resp, err := s.records.Push(ctx, auth.DeviceIDFromContext(ctx), &in)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return s.encode(ctx, resp)
}

func (s *GRPCServer) encode(ctx context.Context, v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error(ctx, "failed to encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *GRPCServer) mapError(ctx context.Context, err error) error {
	if errors.Is(err, records.ErrBadRequest) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error(ctx, err.Error())
	return status.Error(codes.Internal, "internal error")
}
