// Package capture drives the microphone recognizer for the user's turn.
package capture

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gyani-interview/client/internal/constants"
	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	apperrors "gyani-interview/client/pkg/errors"
)

// Events are the recognizer callbacks. They may be called from any goroutine.
// After OnResult or OnError the recognizer may still call OnEnd.
type Events struct {
	OnResult func(text string)
	OnEnd    func()
	OnError  func(err error)
}

// Recognizer is a speech-to-text capture capability
type Recognizer interface {
	Available() bool
	Start(ev Events) error
	Stop()
}

// State is the controller's capture state
type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// Controller owns the recognizer lifecycle. Every method runs on the event loop.
type Controller struct {
	rec      Recognizer
	notifier notify.Notifier
	logger   *zap.Logger

	state    State
	turnOpen bool
	enabled  bool
	muted    bool
	disabled bool
	retried  bool
	token    uint64
	restart  *eventloop.Slot
	sched    eventloop.Scheduler

	onTranscript func(text string)
}

// NewController creates a controller. rec may be nil when the host has no
// capture capability; voice input is then permanently off.
func NewController(sched eventloop.Scheduler, rec Recognizer, notifier notify.Notifier, logger *zap.Logger) *Controller {
	return &Controller{
		rec:      rec,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "capture")),
		enabled:  true,
		restart:  eventloop.NewSlot(sched),
		sched:    sched,
	}
}

// OnTranscript registers the sink for finalized transcripts
func (c *Controller) OnTranscript(fn func(text string)) {
	c.onTranscript = fn
}

// State returns the capture state
func (c *Controller) State() State { return c.state }

// Listening reports whether capture is active
func (c *Controller) Listening() bool { return c.state == StateListening }

// Enabled reports whether voice input is switched on
func (c *Controller) Enabled() bool { return c.enabled }

// Muted reports whether the microphone is muted
func (c *Controller) Muted() bool { return c.muted }

// Supported reports whether voice capture can be used at all
func (c *Controller) Supported() bool {
	return !c.disabled && c.rec != nil && c.rec.Available()
}

// RestartPending reports whether a restart or retry timer is armed
func (c *Controller) RestartPending() bool { return c.restart.Pending() }

// Start begins listening if every gate is open; otherwise it does nothing
func (c *Controller) Start() bool {
	if c.state == StateListening || !c.eligible() {
		return false
	}
	c.restart.Cancel()

	c.token++
	tok := c.token
	ev := Events{
		OnResult: func(text string) { c.sched.Post(func() { c.handleResult(tok, text) }) },
		OnEnd:    func() { c.sched.Post(func() { c.handleEnd(tok) }) },
		OnError:  func(err error) { c.sched.Post(func() { c.handleError(tok, err) }) },
	}

	if err := c.rec.Start(ev); err != nil {
		c.handleError(tok, err)
		return false
	}
	c.state = StateListening
	c.logger.Info("Listening started")
	c.notify("Listening for your response...", notify.SeverityInfo)
	return true
}

// Stop ends capture and cancels any pending restart
func (c *Controller) Stop() {
	c.restart.Cancel()
	if c.state != StateListening {
		return
	}
	c.token++
	c.state = StateIdle
	c.rec.Stop()
	c.logger.Info("Listening stopped")
}

// SetTurnOpen tells the controller whether the user holds the turn. Opening
// the turn resets the transient retry budget; closing it stops capture.
func (c *Controller) SetTurnOpen(open bool) {
	if c.turnOpen == open {
		return
	}
	c.turnOpen = open
	c.retried = false
	if !open {
		c.Stop()
	}
}

// SetEnabled toggles voice input
func (c *Controller) SetEnabled(enabled bool) {
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	c.logger.Info("Voice input toggled", zap.Bool("enabled", enabled))
	if !enabled {
		c.Stop()
	}
}

// SetMuted mutes or unmutes the microphone
func (c *Controller) SetMuted(muted bool) {
	if c.muted == muted {
		return
	}
	c.muted = muted
	c.logger.Info("Microphone toggled", zap.Bool("muted", muted))
	if muted {
		c.Stop()
	}
}

func (c *Controller) eligible() bool {
	return c.turnOpen && c.enabled && !c.muted && c.Supported()
}

func (c *Controller) handleResult(tok uint64, text string) {
	if tok != c.token || c.state != StateListening {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.logger.Info("Speech recognized", zap.Int("chars", len(text)))
	c.retried = false
	c.Stop()

	if c.onTranscript != nil {
		c.onTranscript(text)
	}
}

func (c *Controller) handleEnd(tok uint64) {
	if tok != c.token {
		return
	}
	c.token++
	c.state = StateIdle
	c.retried = false
	c.logger.Debug("Listening ended without a transcript")

	if c.eligible() {
		c.restart.Schedule(constants.CaptureRestartDelay, func() { c.Start() })
	}
}

func (c *Controller) handleError(tok uint64, err error) {
	if tok != c.token {
		return
	}
	c.token++
	c.state = StateIdle

	kind := apperrors.CaptureKindOf(err)
	c.logger.Warn("Voice capture error", zap.String("kind", string(kind)), zap.Error(err))

	switch kind {
	case apperrors.CapturePermanent:
		c.disabled = true
		c.restart.Cancel()
		c.notify("Voice input unavailable, continuing with text only", notify.SeverityWarning)

	case apperrors.CaptureTransient:
		c.notify(fmt.Sprintf("Voice recognition error: %v", err), notify.SeverityError)
		if !c.retried && c.eligible() {
			c.retried = true
			c.restart.Schedule(constants.CaptureTransientRetryDelay, func() { c.Start() })
		}

	default:
		c.notify(fmt.Sprintf("Voice recognition error: %v", err), notify.SeverityError)
	}
}

func (c *Controller) notify(text string, sev notify.Severity) {
	if c.notifier != nil {
		c.notifier.Notify(text, sev)
	}
}
