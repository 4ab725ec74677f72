package eventloop

import "time"

// Slot holds at most one pending timer. Rescheduling or cancelling bumps the
// slot's generation, and a timer that fires with an old generation does
// nothing, so a callback that was already posted to the loop before Stop
// could catch it is still discarded.
//
// A Slot must only be used from the loop goroutine.
type Slot struct {
	sched    Scheduler
	gen      uint64
	timer    Stopper
	pending  bool
	deadline time.Time
}

// NewSlot creates an empty slot on the given scheduler
func NewSlot(sched Scheduler) *Slot {
	return &Slot{sched: sched}
}

// Schedule replaces any pending timer with one that runs fn after d
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.Cancel()

	token := s.gen
	s.pending = true
	s.deadline = s.sched.Now().Add(d)
	s.timer = s.sched.AfterFunc(d, func() {
		if token != s.gen {
			return
		}
		s.pending = false
		s.timer = nil
		fn()
	})
}

// Cancel invalidates the pending timer, if any
func (s *Slot) Cancel() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.deadline = time.Time{}
}

// Pending reports whether a timer is scheduled and not yet fired
func (s *Slot) Pending() bool {
	return s.pending
}

// Deadline returns when the pending timer fires, or the zero time
func (s *Slot) Deadline() time.Time {
	return s.deadline
}

// Generation returns the current token; it changes on every Schedule and Cancel
func (s *Slot) Generation() uint64 {
	return s.gen
}
