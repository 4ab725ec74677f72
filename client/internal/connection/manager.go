// Package connection keeps the session's channel to the dialogue engine open,
// reconnecting with capped exponential backoff after network failures.
package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gyani-interview/client/internal/constants"
	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	"gyani-interview/client/internal/protocol"
	apperrors "gyani-interview/client/pkg/errors"
)

// State is the channel state
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Listener receives the inbound events the turn logic cares about. Methods
// are called on the event loop.
type Listener interface {
	OnConnected()
	OnAIResponse(resp *protocol.AIResponse)
	OnPhase(phase protocol.Phase)
	// OnRemoteEnd fires when the engine ends the interview or closes the
	// channel cleanly. No reconnect follows.
	OnRemoteEnd(reason string)
	// OnReconnectExhausted fires once every reconnect attempt has failed
	OnReconnectExhausted()
}

// Options configures a Manager
type Options struct {
	URL              string
	HandshakeTimeout time.Duration
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	MaxAttempts      int
}

func (o *Options) withDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = constants.DefaultHandshakeTimeout
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = constants.ReconnectBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = constants.ReconnectMaxDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = constants.ReconnectMaxAttempts
	}
}

// Manager owns the channel. Every exported method except the pumps' posts
// must be called on the event loop.
type Manager struct {
	opts     Options
	dialer   Dialer
	sched    eventloop.Scheduler
	notifier notify.Notifier
	logger   *zap.Logger
	listener Listener

	state     State
	attempts  int
	exhausted bool
	retry     *eventloop.Slot

	// gen identifies the current dial/connection; results from older ones are dropped
	gen    uint64
	conn   Conn
	send   chan []byte
	cancel context.CancelFunc
}

// NewManager creates a disconnected manager
func NewManager(opts Options, dialer Dialer, sched eventloop.Scheduler, notifier notify.Notifier, logger *zap.Logger) *Manager {
	opts.withDefaults()
	return &Manager{
		opts:     opts,
		dialer:   dialer,
		sched:    sched,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "connection"), zap.String("url", opts.URL)),
		retry:    eventloop.NewSlot(sched),
	}
}

// SetListener registers the inbound event listener
func (m *Manager) SetListener(l Listener) {
	m.listener = l
}

// State returns the channel state
func (m *Manager) State() State { return m.state }

// Connected reports whether sends can succeed
func (m *Manager) Connected() bool { return m.state == StateConnected }

// Attempts returns the number of reconnect attempts since the last successful connect
func (m *Manager) Attempts() int { return m.attempts }

// Exhausted reports whether reconnection gave up
func (m *Manager) Exhausted() bool { return m.exhausted }

// NextRetry returns when the pending reconnect fires, or the zero time
func (m *Manager) NextRetry() time.Time { return m.retry.Deadline() }

// Connect opens the channel. It does nothing while connecting or connected.
func (m *Manager) Connect() {
	if m.state != StateDisconnected {
		return
	}
	m.retry.Cancel()
	m.exhausted = false
	m.dial()
}

// Send transmits exactly one frame. It fails with ErrNotConnected unless the
// channel is connected; failed sends are not queued.
func (m *Manager) Send(kind protocol.Kind, payload any) error {
	if m.state != StateConnected {
		return apperrors.ErrNotConnected
	}
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		return apperrors.NewSendFailed(string(kind), err)
	}

	select {
	case m.send <- frame:
		m.logger.Debug("Frame queued", zap.String("event", string(kind)))
		return nil
	default:
		return apperrors.NewSendFailed(string(kind), fmt.Errorf("send buffer full"))
	}
}

// Ping sends a liveness probe
func (m *Manager) Ping() error {
	return m.Send(protocol.KindPing, nil)
}

// Close cancels any pending reconnect and closes the channel locally. It is
// safe to call repeatedly.
func (m *Manager) Close() {
	m.retry.Cancel()
	if m.state == StateDisconnected {
		return
	}
	m.gen++
	m.teardown()
	m.state = StateDisconnected
	m.logger.Info("Connection closed locally")
}

func (m *Manager) dial() {
	m.gen++
	gen := m.gen
	m.state = StateConnecting

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	m.cancel = cancel

	m.logger.Info("Connecting", zap.Int("attempt", m.attempts))
	go func() {
		conn, err := m.dialer.Dial(ctx, m.opts.URL)
		m.sched.Post(func() { m.handleDial(gen, conn, err) })
	}()
}

func (m *Manager) handleDial(gen uint64, conn Conn, err error) {
	if gen != m.gen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if err != nil {
		cerr := apperrors.NewConnectionFailed(m.opts.URL, err)
		m.logger.Warn("Connection failed", zap.Error(cerr))
		m.state = StateDisconnected
		m.notify(fmt.Sprintf("Connection failed: %v", err), notify.SeverityError)
		m.scheduleReconnect()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.conn = conn
	m.cancel = cancel
	m.send = make(chan []byte, constants.SendBufferSize)
	m.state = StateConnected
	m.attempts = 0
	m.exhausted = false

	go m.readPump(gen, conn)
	go m.writePump(ctx, gen, conn, m.send)

	m.logger.Info("Connected")
	m.notify("Connected to interview server", notify.SeveritySuccess)

	if err := m.Send(protocol.KindClientReady, nil); err != nil {
		m.logger.Warn("Failed to send client_ready", zap.Error(err))
	}
	if m.listener != nil {
		m.listener.OnConnected()
	}
}

func (m *Manager) readPump(gen uint64, conn Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			m.sched.Post(func() { m.handleClosed(gen, err) })
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m.sched.Post(func() { m.handleFrame(gen, data) })
	}
}

func (m *Manager) writePump(ctx context.Context, gen uint64, conn Conn, send <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			flush(conn, send)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(constants.WriteTimeout))
			_ = conn.Close()
			return
		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.sched.Post(func() { m.handleClosed(gen, err) })
				_ = conn.Close()
				return
			}
		}
	}
}

// flush writes frames queued before shutdown, such as end_interview
func flush(conn Conn, send <-chan []byte) {
	for {
		select {
		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (m *Manager) handleClosed(gen uint64, err error) {
	if gen != m.gen || m.state != StateConnected {
		return
	}
	m.gen++
	m.teardown()
	m.state = StateDisconnected

	remote := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	m.logger.Warn("Disconnected", zap.Bool("remote_initiated", remote), zap.Error(err))
	m.notify("Disconnected from server", notify.SeverityError)

	if remote {
		m.notify("Server ended the connection", notify.SeverityInfo)
		if m.listener != nil {
			m.listener.OnRemoteEnd("Server ended the connection")
		}
		return
	}
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if m.attempts >= m.opts.MaxAttempts {
		m.exhausted = true
		exhausted := apperrors.NewReconnectExhausted(m.attempts)
		m.logger.Error("Giving up on reconnect", zap.Error(exhausted))
		m.notify(fmt.Sprintf("Failed to reconnect after %d attempts. Please restart the session.", m.attempts), notify.SeverityFatal)
		if m.listener != nil {
			m.listener.OnReconnectExhausted()
		}
		return
	}

	delay := Backoff(m.attempts, m.opts.BaseDelay, m.opts.MaxDelay)
	m.attempts++

	m.logger.Info("Scheduling reconnect", zap.Int("attempt", m.attempts), zap.Duration("delay", delay))
	m.notify(fmt.Sprintf("Attempting to reconnect in %s... (%d/%d)",
		formatDelay(delay), m.attempts, m.opts.MaxAttempts), notify.SeverityInfo)

	m.retry.Schedule(delay, func() {
		if m.state == StateDisconnected {
			m.dial()
		}
	})
}

// teardown stops the pumps and releases the socket. The writer sends the
// close frame and closes the connection, which unblocks the reader.
func (m *Manager) teardown() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.conn = nil
	m.send = nil
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	if gen != m.gen {
		return
	}
	in, err := protocol.Decode(data)
	if err != nil {
		m.logger.Warn("Ignoring inbound frame", zap.Error(err))
		return
	}

	switch ev := in.(type) {
	case *protocol.AIResponse:
		m.logger.Info("AI response received",
			zap.Bool("has_audio", ev.Audio != nil),
			zap.String("phase", string(ev.Phase)))
		if m.listener != nil {
			m.listener.OnAIResponse(ev)
		}

	case *protocol.PhaseUpdate:
		m.logger.Info("Phase update", zap.String("phase", string(ev.Phase)))
		if m.listener != nil {
			m.listener.OnPhase(ev.Phase)
		}

	case *protocol.Notice:
		m.handleNotice(ev)

	case *protocol.MonitoringAlert:
		m.logger.Info("Monitoring alert", zap.String("type", ev.Type), zap.String("severity", ev.Severity))
		if ev.Message != "" {
			m.notify(ev.Message, monitoringSeverity(ev.Severity))
		}

	case *protocol.WaitingForResponse:
		m.logger.Debug("Engine waiting state", zap.Bool("waiting", ev.Waiting), zap.Duration("timeout", ev.Timeout))

	case *protocol.ConnectionStatus:
		m.logger.Debug("Connection status", zap.String("status", ev.Status))
	}
}

func (m *Manager) handleNotice(n *protocol.Notice) {
	switch n.Kind {
	case protocol.KindConnectionResponse:
		m.notify(orDefault(n.Message, "Connected successfully"), notify.SeveritySuccess)

	case protocol.KindInterviewEnded:
		msg := orDefault(n.Message, "Interview ended")
		m.logger.Info("Interview ended by server", zap.String("message", msg))
		m.notify(msg, notify.SeverityInfo)
		if m.listener != nil {
			m.listener.OnRemoteEnd(msg)
		}

	case protocol.KindInterviewComplete:
		m.notify(orDefault(n.Message, "Interview complete"), notify.SeverityInfo)

	case protocol.KindError:
		m.logger.Warn("Engine reported an error", zap.String("message", n.Message))
		m.notify(orDefault(n.Message, "Connection error occurred"), notify.SeverityError)

	case protocol.KindMessageReceived:
		m.logger.Debug("Engine acknowledged message", zap.String("message", n.Message))
	}
}

func (m *Manager) notify(text string, sev notify.Severity) {
	if m.notifier != nil {
		m.notifier.Notify(text, sev)
	}
}

// Backoff returns the delay before reconnect attempt n+1: base doubled n
// times, capped at maxDelay
func Backoff(n int, base, maxDelay time.Duration) time.Duration {
	d := base
	for i := 0; i < n && d < maxDelay; i++ {
		d *= 2
	}
	return min(d, maxDelay)
}

func formatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}

func monitoringSeverity(s string) notify.Severity {
	switch s {
	case "high", "critical", "error":
		return notify.SeverityError
	case "medium", "warning":
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
