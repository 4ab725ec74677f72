package constants

import "time"

// Turn-taking timings
const (
	// GraceDelay is the pause after AI speech ends before the user's turn opens,
	// so trailing AI audio is not captured as user speech
	GraceDelay = 1 * time.Second

	// ReceiptAckDuration is how long the "response received" signal stays up
	ReceiptAckDuration = 2 * time.Second
)

// Voice capture timings
const (
	// CaptureRestartDelay is the wait before listening again after capture ended without a transcript
	CaptureRestartDelay = 1 * time.Second

	// CaptureTransientRetryDelay is the wait before the single retry after a network-classified capture error
	CaptureTransientRetryDelay = 2 * time.Second
)

// Reconnection policy
const (
	ReconnectBaseDelay   = 1 * time.Second
	ReconnectMaxDelay    = 10 * time.Second
	ReconnectMaxAttempts = 5
)

// Notification constants
const (
	// AlertTTL is the lifetime of every alert, independent of other alerts
	AlertTTL = 5 * time.Second
)

// Channel constants
const (
	// DefaultHandshakeTimeout bounds the websocket opening handshake
	DefaultHandshakeTimeout = 20 * time.Second

	// SendBufferSize is the number of outbound frames the writer can hold
	SendBufferSize = 64

	// WriteTimeout bounds a single frame write
	WriteTimeout = 10 * time.Second
)

// Display constants
const (
	// TranscriptDisplayWindow is the number of trailing messages shown in the footer
	TranscriptDisplayWindow = 3
)

// User-facing texts shared between components
const (
	EndInterviewText = "Interview ended by user"
)
