package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"gyani-interview/client/internal/eventloop"
)

// Severity controls how an alert is presented
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Alert is a transient user-visible status message
type Alert struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"message"`
	Severity  Severity  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is the narrow view other components use to raise alerts
type Notifier interface {
	Notify(text string, severity Severity) Alert
}

// Center keeps alerts for a fixed TTL each. Every alert has its own eviction
// timer, so later insertions never extend or shorten an earlier alert's life.
type Center struct {
	sched  eventloop.Scheduler
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	alerts []Alert
	timers map[uint64]eventloop.Stopper
	closed bool
}

// NewCenter creates a notification center
func NewCenter(sched eventloop.Scheduler, ttl time.Duration, logger *zap.Logger) *Center {
	return &Center{
		sched:  sched,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "notify")),
		timers: make(map[uint64]eventloop.Stopper),
	}
}

// Notify implements Notifier
func (c *Center) Notify(text string, severity Severity) Alert {
	return c.Enqueue(text, severity)
}

// Enqueue adds an alert and schedules its eviction
func (c *Center) Enqueue(text string, severity Severity) Alert {
	c.mu.Lock()
	alert := Alert{
		ID:        c.nextID,
		Text:      text,
		Severity:  severity,
		CreatedAt: c.sched.Now(),
	}
	c.nextID++

	if c.closed {
		c.mu.Unlock()
		return alert
	}

	c.alerts = append(c.alerts, alert)
	id := alert.ID
	c.timers[id] = c.sched.AfterFunc(c.ttl, func() { c.evict(id) })
	c.mu.Unlock()

	c.log(alert)
	return alert
}

// Active returns the alerts currently displayed, oldest first
func (c *Center) Active() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Close cancels every eviction timer and drops all alerts
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.alerts = nil
	c.closed = true
}

func (c *Center) evict(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.timers, id)
	for i, a := range c.alerts {
		if a.ID == id {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			return
		}
	}
}

func (c *Center) log(a Alert) {
	fields := []zap.Field{
		zap.Uint64("alert_id", a.ID),
		zap.String("severity", string(a.Severity)),
		zap.String("text", a.Text),
	}
	switch a.Severity {
	case SeverityError, SeverityFatal:
		c.logger.Warn("Alert raised", fields...)
	default:
		c.logger.Info("Alert raised", fields...)
	}
}
