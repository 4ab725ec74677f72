package session

import (
	"time"

	"gyani-interview/client/internal/protocol"
)

// Snapshot is a read-only view of the session for the control API
type Snapshot struct {
	SessionID         string         `json:"session_id,omitempty"`
	Active            bool           `json:"active"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	EndReason         EndReason      `json:"end_reason,omitempty"`
	Phase             protocol.Phase `json:"phase"`
	PhaseDisplay      string         `json:"phase_display"`
	Turn              TurnState      `json:"turn"`
	Status            string         `json:"status"`
	CurrentAIMessage  string         `json:"current_ai_message,omitempty"`
	AISpeaking        bool           `json:"ai_speaking"`
	ReceiptAck        bool           `json:"receipt_ack"`
	Listening         bool           `json:"listening"`
	VoiceEnabled      bool           `json:"voice_enabled"`
	VoiceSupported    bool           `json:"voice_supported"`
	MicMuted          bool           `json:"mic_muted"`
	AudioMuted        bool           `json:"audio_muted"`
	Connection        string         `json:"connection"`
	ReconnectAttempts int            `json:"reconnect_attempts"`
	ReconnectFailed   bool           `json:"reconnect_failed"`
	NextRetry         *time.Time     `json:"next_retry,omitempty"`
}

// Snapshot captures the current session view
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:         s.id,
		Active:            s.active,
		EndReason:         s.endReason,
		Phase:             s.phase,
		PhaseDisplay:      s.phase.Display(),
		Turn:              s.turn,
		Status:            s.Status(),
		CurrentAIMessage:  s.lastAI,
		AISpeaking:        s.aiSpeaking(),
		ReceiptAck:        s.receiptAck,
		Listening:         s.capture.Listening(),
		VoiceEnabled:      s.capture.Enabled(),
		VoiceSupported:    s.capture.Supported(),
		MicMuted:          s.capture.Muted(),
		AudioMuted:        s.playback.Muted(),
		Connection:        s.channel.State().String(),
		ReconnectAttempts: s.channel.Attempts(),
		ReconnectFailed:   s.channel.Exhausted(),
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if next := s.channel.NextRetry(); !next.IsZero() {
		snap.NextRetry = &next
	}
	return snap
}

// Status is the one-line response status shown under the transcript
func (s *Session) Status() string {
	switch {
	case s.receiptAck:
		return "Response received"
	case s.capture.Listening():
		return "Listening..."
	case s.turn == TurnWaitingUser:
		return "Waiting for your response"
	case s.aiSpeaking():
		return "AI is speaking..."
	case s.channel.Connected():
		return "Ready"
	default:
		return "Connecting..."
	}
}

func (s *Session) aiSpeaking() bool {
	return s.turn == TurnAISpeaking || s.playback.IsSpeaking()
}
