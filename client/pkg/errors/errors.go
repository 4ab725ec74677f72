package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConnection represents channel connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeProtocol represents malformed or unexpected inbound messages
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeCapture represents voice capture errors
	ErrorTypeCapture ErrorType = "capture"
	// ErrorTypePlayback represents audio playback and synthesis errors
	ErrorTypePlayback ErrorType = "playback"
	// ErrorTypeSend represents outbound send failures
	ErrorTypeSend ErrorType = "send"
	// ErrorTypeTurn represents operations attempted out of turn
	ErrorTypeTurn ErrorType = "turn"
	// ErrorTypeBootstrap represents pre-session health/initialize failures
	ErrorTypeBootstrap ErrorType = "bootstrap"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType returns the category of the error
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Connection Errors

// ErrNotConnected is returned when a send is attempted while the channel is not connected
var ErrNotConnected = NewBaseError(ErrorTypeSend, "not connected", nil)

// ErrConnectionFailed is returned when dialing or keeping the channel open fails
type ErrConnectionFailed struct {
	*BaseError
	URL string
}

func NewConnectionFailed(url string, err error) *ErrConnectionFailed {
	return &ErrConnectionFailed{
		BaseError: NewBaseError(ErrorTypeConnection, fmt.Sprintf("connection to %s failed", url), err),
		URL:       url,
	}
}

// ErrReconnectExhausted is returned when every reconnection attempt has failed
type ErrReconnectExhausted struct {
	*BaseError
	Attempts int
}

func NewReconnectExhausted(attempts int) *ErrReconnectExhausted {
	return &ErrReconnectExhausted{
		BaseError: NewBaseError(ErrorTypeConnection, fmt.Sprintf("failed to reconnect after %d attempts", attempts), nil),
		Attempts:  attempts,
	}
}

// ErrSendFailed is returned when an outbound frame could not be handed to the writer
type ErrSendFailed struct {
	*BaseError
	Kind string
}

func NewSendFailed(kind string, err error) *ErrSendFailed {
	return &ErrSendFailed{
		BaseError: NewBaseError(ErrorTypeSend, fmt.Sprintf("failed to send %s", kind), err),
		Kind:      kind,
	}
}

// Protocol Errors

// ErrProtocol is returned for inbound frames that cannot be decoded or are not recognized
type ErrProtocol struct {
	*BaseError
	Kind   string
	Reason string
}

func NewProtocolError(kind, reason string, err error) *ErrProtocol {
	return &ErrProtocol{
		BaseError: NewBaseError(ErrorTypeProtocol, fmt.Sprintf("bad %q frame: %s", kind, reason), err),
		Kind:      kind,
		Reason:    reason,
	}
}

// Capture Errors

// CaptureKind classifies a capture failure for the retry policy
type CaptureKind string

const (
	// CaptureTransient errors (network-classified) are retried once
	CaptureTransient CaptureKind = "transient"
	// CapturePermanent errors disable voice input for the rest of the session
	CapturePermanent CaptureKind = "permanent"
	// CaptureOther errors are surfaced but never retried
	CaptureOther CaptureKind = "other"
)

// ErrCaptureFailed is returned by microphone capture capabilities
type ErrCaptureFailed struct {
	*BaseError
	Kind CaptureKind
}

func NewCaptureFailed(kind CaptureKind, reason string, err error) *ErrCaptureFailed {
	return &ErrCaptureFailed{
		BaseError: NewBaseError(ErrorTypeCapture, reason, err),
		Kind:      kind,
	}
}

// ErrCaptureUnsupported is returned when no capture capability is available
var ErrCaptureUnsupported = NewCaptureFailed(CapturePermanent, "voice capture not supported", nil)

// Playback Errors

// ErrPlaybackFailed is returned when a clip or utterance cannot be played
type ErrPlaybackFailed struct {
	*BaseError
	ClipID uint64
}

func NewPlaybackFailed(clipID uint64, err error) *ErrPlaybackFailed {
	return &ErrPlaybackFailed{
		BaseError: NewBaseError(ErrorTypePlayback, fmt.Sprintf("playback of clip %d failed", clipID), err),
		ClipID:    clipID,
	}
}

// Turn Errors

// ErrNotYourTurn is returned when user input arrives while the AI holds the turn
type ErrNotYourTurn struct {
	*BaseError
	State string
}

func NewNotYourTurn(state string) *ErrNotYourTurn {
	return &ErrNotYourTurn{
		BaseError: NewBaseError(ErrorTypeTurn, fmt.Sprintf("cannot respond in turn state %s", state), nil),
		State:     state,
	}
}

// ErrEmptyMessage is returned when a blank user message is submitted
var ErrEmptyMessage = NewBaseError(ErrorTypeTurn, "message is empty", nil)

// ErrSessionInactive is returned when an operation needs a started session
var ErrSessionInactive = NewBaseError(ErrorTypeTurn, "session is not active", nil)

// Bootstrap Errors

// ErrBootstrapFailed is returned when the health check or initialization step fails
type ErrBootstrapFailed struct {
	*BaseError
	Step       string
	StatusCode int
}

func NewBootstrapFailed(step string, statusCode int, err error) *ErrBootstrapFailed {
	return &ErrBootstrapFailed{
		BaseError:  NewBaseError(ErrorTypeBootstrap, fmt.Sprintf("%s failed (status %d)", step, statusCode), err),
		Step:       step,
		StatusCode: statusCode,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var t typed
	if stderrors.As(err, &t) {
		return t.ErrorType() == errType
	}
	return false
}

// CaptureKindOf classifies a capture error. Errors that did not come from a
// capture capability are treated as CaptureOther.
func CaptureKindOf(err error) CaptureKind {
	var capErr *ErrCaptureFailed
	if stderrors.As(err, &capErr) {
		return capErr.Kind
	}
	return CaptureOther
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var exhausted *ErrReconnectExhausted
	if stderrors.As(err, &exhausted) {
		return false
	}
	if IsErrorType(err, ErrorTypeConnection) {
		return true
	}
	if IsErrorType(err, ErrorTypeCapture) {
		return CaptureKindOf(err) == CaptureTransient
	}
	return false
}
