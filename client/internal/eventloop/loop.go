// Package eventloop provides the single cooperative loop the session engine runs on.
//
// Every device callback, socket event, timer and user action is posted to the
// loop and runs to completion before the next one starts, so component state
// is only ever touched from one goroutine.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Call once the loop is no longer running
var ErrStopped = errors.New("event loop stopped")

// Stopper cancels a scheduled timer. Stop reports whether the timer was
// still pending.
type Stopper interface {
	Stop() bool
}

// Scheduler is what components need from the loop: a way to hand work to it,
// delayed work, and the loop's notion of time.
type Scheduler interface {
	// Post queues fn to run on the loop. Safe to call from any goroutine.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Stopper
	// Now returns the current loop time.
	Now() time.Time
}

// Caller runs fn on the loop and waits for it to finish
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Loop is the production event loop
type Loop struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	started bool
}

// New creates a loop. Run must be called for posted work to execute.
func New(logger *zap.Logger) *Loop {
	return &Loop{
		logger: logger.With(zap.String("component", "eventloop")),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn. Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc schedules fn to be posted to the loop after d
func (l *Loop) AfterFunc(d time.Duration, fn func()) Stopper {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Now returns wall-clock time
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Run processes posted work until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("event loop already running")
	}
	l.started = true
	l.mu.Unlock()

	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runOne(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.queue = nil
			l.mu.Unlock()
			l.logger.Debug("Event loop stopped")
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Call posts fn and blocks until it has run on the loop
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

func (l *Loop) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic in loop callback", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
