package navsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/orrery/internal/engine"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxIDLength bounds body ids accepted from clients.
const MaxIDLength = 128

// ErrInvalidRequest is returned for malformed client input.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps engine and validation errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrUnknownBody):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ValidateBodyID trims id and checks it is usable as a registry key.
func ValidateBodyID(id string) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", fmt.Errorf("%w: id is required", ErrInvalidRequest)
	case len(id) > MaxIDLength:
		return "", fmt.Errorf("%w: id longer than %d bytes", ErrInvalidRequest, MaxIDLength)
	}
	return id, nil
}
