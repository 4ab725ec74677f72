// Package session coordinates one interview: it owns the channel, playback
// and capture, and decides whose turn it is.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gyani-interview/client/internal/connection"
	"gyani-interview/client/internal/constants"
	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	"gyani-interview/client/internal/protocol"
	"gyani-interview/client/internal/transcript"
	apperrors "gyani-interview/client/pkg/errors"
)

// Channel is the connection to the dialogue engine
type Channel interface {
	SetListener(l connection.Listener)
	Connect()
	Close()
	Send(kind protocol.Kind, payload any) error
	Ping() error
	State() connection.State
	Connected() bool
	Attempts() int
	Exhausted() bool
	NextRetry() time.Time
}

// Playback plays AI speech
type Playback interface {
	OnDrained(fn func())
	EnqueueClip(audio []byte) uint64
	EnqueueUtterance(text string) uint64
	IsSpeaking() bool
	Stop()
	SetMuted(muted bool)
	Muted() bool
}

// Capture listens for the user's spoken answer
type Capture interface {
	OnTranscript(fn func(text string))
	Start() bool
	Stop()
	SetTurnOpen(open bool)
	SetEnabled(enabled bool)
	SetMuted(muted bool)
	Enabled() bool
	Muted() bool
	Listening() bool
	Supported() bool
}

// Deps are the resources a session owns
type Deps struct {
	Scheduler eventloop.Scheduler
	Channel   Channel
	Playback  Playback
	Capture   Capture
	Notifier  notify.Notifier
	Logger    *zap.Logger
}

// Session is the turn coordinator. Every method must run on the event loop.
type Session struct {
	sched    eventloop.Scheduler
	channel  Channel
	playback Playback
	capture  Capture
	notifier notify.Notifier
	base     *zap.Logger
	logger   *zap.Logger

	id         string
	active     bool
	startedAt  time.Time
	endReason  EndReason
	phase      protocol.Phase
	turn       TurnState
	receiptAck bool
	lastAI     string
	transcript *transcript.Log

	grace *eventloop.Slot
	ack   *eventloop.Slot
}

// New wires a session to its resources
func New(d Deps) *Session {
	s := &Session{
		sched:      d.Scheduler,
		channel:    d.Channel,
		playback:   d.Playback,
		capture:    d.Capture,
		notifier:   d.Notifier,
		base:       d.Logger.With(zap.String("component", "session")),
		phase:      protocol.PhaseIntroduction,
		transcript: transcript.NewLog(d.Scheduler.Now),
		grace:      eventloop.NewSlot(d.Scheduler),
		ack:        eventloop.NewSlot(d.Scheduler),
	}
	s.logger = s.base

	s.channel.SetListener(s)
	s.playback.OnDrained(s.handleQueueDrained)
	s.capture.OnTranscript(s.handleTranscript)
	return s
}

// Start begins a new interview and connects. Starting an active session
// returns its id unchanged.
func (s *Session) Start() string {
	if s.active {
		return s.id
	}

	s.id = uuid.New().String()
	s.active = true
	s.startedAt = s.sched.Now()
	s.endReason = ""
	s.phase = protocol.PhaseIntroduction
	s.turn = TurnIdle
	s.receiptAck = false
	s.lastAI = ""
	s.transcript = transcript.NewLog(s.sched.Now)
	s.logger = s.base.With(zap.String("session_id", s.id))

	s.logger.Info("Session started")
	s.channel.Connect()
	return s.id
}

// End tears the session down: cancel timers, stop capture, stop playback,
// then close the channel. Repeated calls do nothing.
func (s *Session) End(reason EndReason) {
	if !s.active {
		return
	}
	s.active = false
	s.endReason = reason
	prev := s.turn
	s.turn = TurnIdle

	s.grace.Cancel()
	s.ack.Cancel()
	s.receiptAck = false

	s.capture.SetTurnOpen(false)
	s.capture.Stop()
	s.playback.Stop()

	if reason == EndByUser && s.channel.Connected() {
		msg := protocol.NewUserMessage(constants.EndInterviewText, s.sched.Now(), s.phase)
		if err := s.channel.Send(protocol.KindEndInterview, msg); err != nil {
			s.logger.Warn("Failed to send end_interview", zap.Error(err))
		}
	}
	s.channel.Close()

	s.logger.Info("Session ended",
		zap.String("reason", string(reason)),
		zap.Stringer("from_turn", prev),
		zap.Int("transcript_len", s.transcript.Len()),
		zap.Duration("duration", s.sched.Now().Sub(s.startedAt)))

	if reason == EndByUser {
		s.notify("Interview ended successfully", notify.SeveritySuccess)
	}
}

// SubmitText sends a typed answer
func (s *Session) SubmitText(text string) error {
	return s.respond(text, "text")
}

// StartListening starts voice capture by hand during the user's turn
func (s *Session) StartListening() error {
	if !s.active {
		return apperrors.ErrSessionInactive
	}
	if s.turn != TurnWaitingUser {
		return apperrors.NewNotYourTurn(s.turn.String())
	}
	if s.capture.Listening() {
		return nil
	}
	if !s.capture.Start() {
		return apperrors.NewCaptureFailed(apperrors.CaptureOther, "voice capture cannot start", nil)
	}
	return nil
}

// StopListening stops voice capture
func (s *Session) StopListening() {
	s.capture.Stop()
}

// SetMicMuted mutes or unmutes the microphone
func (s *Session) SetMicMuted(muted bool) {
	s.capture.SetMuted(muted)
	if muted {
		s.notify("Microphone muted", notify.SeverityInfo)
		return
	}
	s.notify("Microphone unmuted", notify.SeveritySuccess)
	s.resumeCapture()
}

// SetVoiceEnabled toggles voice input
func (s *Session) SetVoiceEnabled(enabled bool) {
	s.capture.SetEnabled(enabled)
	if !enabled {
		s.notify("Voice input disabled", notify.SeverityInfo)
		return
	}
	s.notify("Voice input enabled", notify.SeveritySuccess)
	s.resumeCapture()
}

// SetAudioMuted mutes or unmutes AI speech
func (s *Session) SetAudioMuted(muted bool) {
	s.playback.SetMuted(muted)
	if muted {
		s.notify("AI Audio muted", notify.SeverityInfo)
	} else {
		s.notify("AI Audio unmuted", notify.SeveritySuccess)
	}
}

// TestConnection pings the engine, or reconnects when the channel is down
func (s *Session) TestConnection() {
	if s.channel.Connected() {
		if err := s.channel.Ping(); err != nil {
			s.logger.Warn("Ping failed", zap.Error(err))
		}
		s.notify("Connection test sent", notify.SeverityInfo)
		return
	}
	s.notify("Not connected - attempting to reconnect", notify.SeverityWarning)
	if s.active {
		s.channel.Connect()
	}
}

// ID returns the current or last session id
func (s *Session) ID() string { return s.id }

// Active reports whether a session is running
func (s *Session) Active() bool { return s.active }

// Turn returns the turn state
func (s *Session) Turn() TurnState { return s.turn }

// Phase returns the interview phase
func (s *Session) Phase() protocol.Phase { return s.phase }

// Transcript returns the whole transcript, or the trailing n lines when n > 0
func (s *Session) Transcript(n int) []transcript.Message {
	if n > 0 {
		return s.transcript.Last(n)
	}
	return s.transcript.All()
}

// OnConnected implements connection.Listener
func (s *Session) OnConnected() {
	s.logger.Info("Channel ready", zap.Bool("active", s.active))
}

// OnAIResponse implements connection.Listener
func (s *Session) OnAIResponse(resp *protocol.AIResponse) {
	if !s.active {
		s.logger.Debug("Dropping AI response outside a session")
		return
	}

	s.transcript.Append(transcript.SpeakerAI, resp.Message)
	s.lastAI = resp.Message
	if resp.Phase != "" {
		s.setPhase(resp.Phase)
	}

	s.grace.Cancel()
	s.ack.Cancel()
	s.receiptAck = false
	s.setTurn(TurnAISpeaking)

	if len(resp.Audio) > 0 {
		s.playback.EnqueueClip(resp.Audio)
	} else {
		s.logger.Info("AI response has no audio, using synthesized speech")
		s.playback.EnqueueUtterance(resp.Message)
	}
}

// OnPhase implements connection.Listener
func (s *Session) OnPhase(phase protocol.Phase) {
	s.setPhase(phase)
}

// OnRemoteEnd implements connection.Listener
func (s *Session) OnRemoteEnd(reason string) {
	s.logger.Info("Engine ended the interview", zap.String("reason", reason))
	s.End(EndByRemote)
}

// OnReconnectExhausted implements connection.Listener
func (s *Session) OnReconnectExhausted() {
	s.End(EndReconnectFailed)
}

func (s *Session) handleQueueDrained() {
	if !s.active || s.turn != TurnAISpeaking || s.playback.IsSpeaking() {
		return
	}
	s.setTurn(TurnGraceWait)
	s.grace.Schedule(constants.GraceDelay, s.handleGraceElapsed)
}

func (s *Session) handleGraceElapsed() {
	if !s.active || s.turn != TurnGraceWait || s.playback.IsSpeaking() {
		return
	}
	s.setTurn(TurnWaitingUser)
}

func (s *Session) handleTranscript(text string) {
	if err := s.respond(text, "voice"); err != nil {
		s.logger.Warn("Voice answer not accepted", zap.Error(err))
	}
}

// respond records the user's answer and sends it. A failed send is reported
// but not retried; the answer stays in the transcript.
func (s *Session) respond(text, source string) error {
	if !s.active {
		return apperrors.ErrSessionInactive
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.ErrEmptyMessage
	}
	if !s.turn.acceptsInput() {
		return apperrors.NewNotYourTurn(s.turn.String())
	}

	s.transcript.Append(transcript.SpeakerUser, text)
	s.grace.Cancel()
	s.setTurn(TurnUserResponded)
	s.receiptAck = true
	s.ack.Schedule(constants.ReceiptAckDuration, func() { s.receiptAck = false })

	s.logger.Info("User responded", zap.String("source", source), zap.Int("chars", len(text)))

	msg := protocol.NewUserMessage(text, s.sched.Now(), s.phase)
	if err := s.channel.Send(protocol.KindUserMessage, msg); err != nil {
		s.logger.Warn("Answer not sent", zap.Error(err))
		s.notify("Not connected to server. Please wait for reconnection.", notify.SeverityError)
		return err
	}
	s.notify("Message sent to AI", notify.SeveritySuccess)
	return nil
}

// setTurn moves to a new turn state and opens or closes capture to match
func (s *Session) setTurn(next TurnState) {
	if s.turn == next {
		return
	}
	prev := s.turn
	s.turn = next
	s.logger.Debug("Turn changed", zap.Stringer("from", prev), zap.Stringer("to", next))

	s.capture.SetTurnOpen(next == TurnWaitingUser)
	if next == TurnWaitingUser {
		s.capture.Start()
	}
}

func (s *Session) setPhase(p protocol.Phase) {
	if !p.Valid() || p == s.phase {
		return
	}
	s.logger.Info("Interview phase changed", zap.String("from", string(s.phase)), zap.String("to", string(p)))
	s.phase = p
}

func (s *Session) resumeCapture() {
	if s.active && s.turn == TurnWaitingUser {
		s.capture.Start()
	}
}

func (s *Session) notify(text string, sev notify.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(text, sev)
	}
}
