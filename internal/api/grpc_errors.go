package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/kb"
)

// ToStatusError maps drift errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	// An unknown object type wraps both ErrInvalidProfile and
	// ErrProfileNotFound; the request is at fault, so it is checked first.
	case errors.Is(err, core.ErrInvalidProfile),
		errors.Is(err, core.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, kb.ErrProfileNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, core.ErrCacheFetchFailed):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
