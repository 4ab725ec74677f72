// Package playback plays AI speech: queued audio clips and, when a message
// arrives without audio, synthesized speech. Both share one output channel.
package playback

import (
	"go.uber.org/zap"

	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	apperrors "gyani-interview/client/pkg/errors"
)

// Events are the completion callbacks a device reports. Devices may call them
// from any goroutine; each is called at most once per playback.
type Events struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// Handle stops an in-flight playback
type Handle interface {
	Stop()
}

// Player plays an encoded audio clip
type Player interface {
	Play(audio []byte, ev Events) (Handle, error)
}

// Synthesizer speaks text aloud
type Synthesizer interface {
	Speak(text string, ev Events) (Handle, error)
}

type itemKind int

const (
	kindClip itemKind = iota
	kindUtterance
)

func (k itemKind) String() string {
	if k == kindUtterance {
		return "utterance"
	}
	return "clip"
}

type item struct {
	id     uint64
	kind   itemKind
	audio  []byte
	text   string
	handle Handle
}

// Queue is a strict FIFO with at most one active item. It is not safe for
// concurrent use; every method runs on the event loop.
type Queue struct {
	sched    eventloop.Scheduler
	player   Player
	synth    Synthesizer
	notifier notify.Notifier
	logger   *zap.Logger

	items     []*item
	active    *item
	token     uint64
	nextID    uint64
	muted     bool
	onDrained func()
}

// NewQueue creates a playback queue. synth may be nil, in which case text-only
// messages are skipped.
func NewQueue(sched eventloop.Scheduler, player Player, synth Synthesizer, notifier notify.Notifier, logger *zap.Logger) *Queue {
	return &Queue{
		sched:    sched,
		player:   player,
		synth:    synth,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "playback")),
	}
}

// OnDrained registers fn to run whenever the last item finishes and nothing
// is left to play
func (q *Queue) OnDrained(fn func()) {
	q.onDrained = fn
}

// EnqueueClip queues an audio clip
func (q *Queue) EnqueueClip(audio []byte) uint64 {
	return q.enqueue(&item{kind: kindClip, audio: audio})
}

// EnqueueUtterance queues text for synthesized speech
func (q *Queue) EnqueueUtterance(text string) uint64 {
	return q.enqueue(&item{kind: kindUtterance, text: text})
}

// IsSpeaking reports whether a clip or utterance is playing
func (q *Queue) IsSpeaking() bool {
	return q.active != nil
}

// Len returns the number of items waiting behind the active one
func (q *Queue) Len() int {
	return len(q.items)
}

// Muted reports whether AI audio is muted
func (q *Queue) Muted() bool {
	return q.muted
}

// SetMuted mutes or unmutes AI audio. Muting stops whatever is playing and
// skips everything queued, so the drained callback still fires.
func (q *Queue) SetMuted(muted bool) {
	if q.muted == muted {
		return
	}
	q.muted = muted
	q.logger.Info("AI audio mute changed", zap.Bool("muted", muted))

	if !muted {
		return
	}
	hadWork := q.active != nil || len(q.items) > 0
	q.Stop()
	if hadWork {
		q.drained()
	}
}

// Stop halts the active item and discards the queue without firing the
// drained callback
func (q *Queue) Stop() {
	q.token++
	if q.active != nil {
		if q.active.handle != nil {
			q.active.handle.Stop()
		}
		q.logger.Debug("Playback stopped", zap.Uint64("item_id", q.active.id))
		q.active = nil
	}
	q.items = nil
}

func (q *Queue) enqueue(it *item) uint64 {
	q.nextID++
	it.id = q.nextID
	q.items = append(q.items, it)

	q.logger.Debug("Playback item queued",
		zap.Uint64("item_id", it.id),
		zap.Stringer("kind", it.kind),
		zap.Int("queued", len(q.items)))

	if q.active == nil {
		q.advance()
		if q.active == nil {
			q.drained()
		}
	}
	return it.id
}

// advance starts the next playable item, skipping ones that fail to start
func (q *Queue) advance() {
	for q.active == nil && len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]

		if q.muted {
			q.logger.Debug("Skipping item while muted", zap.Uint64("item_id", it.id))
			continue
		}

		q.token++
		tok := q.token
		ev := Events{
			OnStart: func() { q.sched.Post(func() { q.started(tok, it) }) },
			OnEnd:   func() { q.sched.Post(func() { q.finish(tok, nil) }) },
			OnError: func(err error) { q.sched.Post(func() { q.finish(tok, err) }) },
		}

		handle, err := q.start(it, ev)
		if err != nil {
			q.fail(it, err)
			continue
		}
		it.handle = handle
		q.active = it
	}
}

func (q *Queue) start(it *item, ev Events) (Handle, error) {
	switch it.kind {
	case kindUtterance:
		if q.synth == nil {
			return nil, apperrors.NewBaseError(apperrors.ErrorTypePlayback, "speech synthesis unavailable", nil)
		}
		return q.synth.Speak(it.text, ev)
	default:
		return q.player.Play(it.audio, ev)
	}
}

func (q *Queue) started(tok uint64, it *item) {
	if tok != q.token {
		return
	}
	q.logger.Debug("Playback started", zap.Uint64("item_id", it.id), zap.Stringer("kind", it.kind))
}

func (q *Queue) finish(tok uint64, err error) {
	if tok != q.token || q.active == nil {
		return
	}
	it := q.active
	q.active = nil

	if err != nil {
		q.fail(it, err)
	} else {
		q.logger.Debug("Playback finished", zap.Uint64("item_id", it.id))
	}

	q.advance()
	if q.active == nil {
		q.drained()
	}
}

func (q *Queue) fail(it *item, err error) {
	perr := apperrors.NewPlaybackFailed(it.id, err)
	q.logger.Warn("Playback failed, skipping",
		zap.Uint64("item_id", it.id),
		zap.Stringer("kind", it.kind),
		zap.Error(perr))
	if q.notifier != nil {
		q.notifier.Notify("Audio playback failed, skipping", notify.SeverityWarning)
	}
}

func (q *Queue) drained() {
	q.logger.Debug("Playback queue drained")
	if q.onDrained != nil {
		q.onDrained()
	}
}
