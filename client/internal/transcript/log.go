package transcript

import (
	"sync"
	"time"
)

// Speaker identifies who produced a message
type Speaker string

const (
	SpeakerAI   Speaker = "AI"
	SpeakerUser Speaker = "User"
)

// Message is one transcript entry. Messages are never modified after append.
type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the in-memory, append-only record of an interview
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog creates an empty log stamping messages with now
func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append records a message at the end of the log and returns it.
// Timestamps never go backwards: a clock step back is clamped to the
// previous entry's timestamp.
func (l *Log) Append(speaker Speaker, text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	if n := len(l.messages); n > 0 && ts.Before(l.messages[n-1].Timestamp) {
		ts = l.messages[n-1].Timestamp
	}

	msg := Message{Speaker: speaker, Text: text, Timestamp: ts}
	l.messages = append(l.messages, msg)
	return msg
}

// All returns a copy of every message in arrival order
func (l *Log) All() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns a copy of at most n trailing messages
func (l *Log) Last(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return []Message{}
	}
	start := len(l.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(l.messages)-start)
	copy(out, l.messages[start:])
	return out
}

// Len returns the number of messages
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
