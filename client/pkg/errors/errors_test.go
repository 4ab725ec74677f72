package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_TypedWrappers(t *testing.T) {
	connErr := NewConnectionFailed("ws://localhost:5000/ws", fmt.Errorf("refused"))
	assert.True(t, IsErrorType(connErr, ErrorTypeConnection))
	assert.False(t, IsErrorType(connErr, ErrorTypeProtocol))

	wrapped := fmt.Errorf("dial: %w", connErr)
	assert.True(t, IsErrorType(wrapped, ErrorTypeConnection))

	assert.True(t, IsErrorType(ErrNotConnected, ErrorTypeSend))
	assert.False(t, IsErrorType(fmt.Errorf("plain"), ErrorTypeSend))
}

func TestCaptureKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CaptureKind
	}{
		{"transient", NewCaptureFailed(CaptureTransient, "network", nil), CaptureTransient},
		{"permanent", ErrCaptureUnsupported, CapturePermanent},
		{"wrapped permanent", fmt.Errorf("start: %w", ErrCaptureUnsupported), CapturePermanent},
		{"foreign error", fmt.Errorf("boom"), CaptureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaptureKindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewConnectionFailed("ws://x", nil)))
	assert.False(t, IsRetryable(NewReconnectExhausted(5)))
	assert.False(t, IsRetryable(NewContextCancelled("dial", context.Canceled)))
	assert.True(t, IsRetryable(NewCaptureFailed(CaptureTransient, "network", nil)))
	assert.False(t, IsRetryable(NewCaptureFailed(CaptureOther, "aborted", nil)))
	assert.False(t, IsRetryable(NewProtocolError("ai_response", "bad json", nil)))
}

func TestBaseError_Message(t *testing.T) {
	err := NewBootstrapFailed("health check", 503, fmt.Errorf("unavailable"))
	assert.Equal(t, "[bootstrap] health check failed (status 503): unavailable", err.Error())
	assert.EqualError(t, ErrNotConnected, "[send] not connected")
}
