package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "validation", err: fmt.Errorf("doc: %w", ErrValidationFailed), want: codes.InvalidArgument},
		{name: "app error", err: NewAppError("BAD", "bad input", ErrInvalidInput), want: codes.InvalidArgument},
		{name: "malformed", err: ErrMalformedDocument, want: codes.FailedPrecondition},
		{name: "ocr unavailable", err: fmt.Errorf("both engines: %w", ErrOcrUnavailable), want: codes.Unavailable},
		{name: "not found", err: ErrNotFound, want: codes.NotFound},
		{name: "deadline", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "canceled", err: context.Canceled, want: codes.Canceled},
		{name: "status passthrough", err: status.Error(codes.AlreadyExists, "dup"), want: codes.AlreadyExists},
		{name: "other", err: errors.New("boom"), want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(ToStatus(tt.err)))
		})
	}
	assert.NoError(t, ToStatus(nil))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("UNSUPPORTED_EXTENSION", "extension .exe is not accepted", ErrInvalidInput)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "UNSUPPORTED_EXTENSION")
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.NotEmpty(t, RequestIDFromContext(context.Background()))
}
