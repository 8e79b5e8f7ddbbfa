package navsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/signalsfoundry/orrery/internal/engine"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid request", err: fmt.Errorf("%w: id is required", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "unknown body", err: fmt.Errorf("%w: %q", engine.ErrUnknownBody, "x"), code: codes.NotFound},
		{name: "stopped", err: engine.ErrStopped, code: codes.Unavailable},
		{name: "canceled", err: context.Canceled, code: codes.Canceled},
		{name: "deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), code: codes.DeadlineExceeded},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}

func TestValidateBodyID(t *testing.T) {
	if id, err := ValidateBodyID("  portfolio "); err != nil || id != "portfolio" {
		t.Fatalf("ValidateBodyID = %q, %v", id, err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("x", MaxIDLength+1)} {
		if _, err := ValidateBodyID(bad); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("ValidateBodyID(%q) error = %v, want ErrInvalidRequest", bad, err)
		}
	}
}
