package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	apperrors "gyani-interview/client/pkg/errors"
)

type fakeRecognizer struct {
	available bool
	starts    int
	stops     int
	startErr  error
	ev        Events
}

func (r *fakeRecognizer) Available() bool { return r.available }

func (r *fakeRecognizer) Start(ev Events) error {
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.ev = ev
	return nil
}

func (r *fakeRecognizer) Stop() { r.stops++ }

type recordingNotifier struct {
	alerts []notify.Alert
}

func (n *recordingNotifier) Notify(text string, sev notify.Severity) notify.Alert {
	a := notify.Alert{Text: text, Severity: sev}
	n.alerts = append(n.alerts, a)
	return a
}

func (n *recordingNotifier) last() notify.Alert {
	return n.alerts[len(n.alerts)-1]
}

type harness struct {
	loop     *eventloop.Manual
	rec      *fakeRecognizer
	notifier *recordingNotifier
	ctrl     *Controller
	got      []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:     eventloop.NewManual(time.Unix(0, 0)),
		rec:      &fakeRecognizer{available: true},
		notifier: &recordingNotifier{},
	}
	h.ctrl = NewController(h.loop, h.rec, h.notifier, zap.NewNop())
	h.ctrl.OnTranscript(func(text string) { h.got = append(h.got, text) })
	return h
}

func TestStart_GateConditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"turn closed", func(h *harness) {}},
		{"voice disabled", func(h *harness) { h.ctrl.SetTurnOpen(true); h.ctrl.SetEnabled(false) }},
		{"mic muted", func(h *harness) { h.ctrl.SetTurnOpen(true); h.ctrl.SetMuted(true) }},
		{"capability missing", func(h *harness) { h.ctrl.SetTurnOpen(true); h.rec.available = false }},
		{"all closed", func(h *harness) {
			h.ctrl.SetEnabled(false)
			h.ctrl.SetMuted(true)
			h.rec.available = false
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			assert.False(t, h.ctrl.Start())
			assert.Equal(t, StateIdle, h.ctrl.State())
			assert.Equal(t, 0, h.rec.starts)
		})
	}
}

func TestStart_AlreadyListening(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)

	require.True(t, h.ctrl.Start())
	assert.False(t, h.ctrl.Start())
	assert.Equal(t, 1, h.rec.starts)
}

func TestResult_ForwardsAndStops(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	h.rec.ev.OnResult("  yes  ")
	h.rec.ev.OnEnd()
	h.loop.RunPending()

	assert.Equal(t, []string{"yes"}, h.got)
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, 1, h.rec.stops)
	assert.False(t, h.ctrl.RestartPending(), "end after a result must not restart")
}

func TestEnd_AutoRestartsAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	for i := 0; i < 3; i++ {
		h.rec.ev.OnEnd()
		h.loop.RunPending()
		assert.False(t, h.ctrl.Listening())

		h.loop.Advance(999 * time.Millisecond)
		assert.Equal(t, i+1, h.rec.starts)

		h.loop.Advance(time.Millisecond)
		assert.Equal(t, i+2, h.rec.starts)
		assert.True(t, h.ctrl.Listening())
	}
}

func TestEnd_NoRestartOnceTurnCloses(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	h.rec.ev.OnEnd()
	h.loop.RunPending()
	require.True(t, h.ctrl.RestartPending())

	h.ctrl.SetTurnOpen(false)
	h.loop.Advance(5 * time.Second)

	assert.Equal(t, 1, h.rec.starts)
	assert.Equal(t, 0, h.loop.PendingTimers())
}

func TestError_TransientRetriesOnce(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	netErr := apperrors.NewCaptureFailed(apperrors.CaptureTransient, "network", errors.New("dial tcp: timeout"))

	h.rec.ev.OnError(netErr)
	h.rec.ev.OnEnd()
	h.loop.RunPending()
	require.Len(t, h.notifier.alerts, 2)
	assert.Equal(t, notify.SeverityError, h.notifier.last().Severity)

	h.loop.Advance(1999 * time.Millisecond)
	assert.Equal(t, 1, h.rec.starts)
	h.loop.Advance(time.Millisecond)
	assert.Equal(t, 2, h.rec.starts)

	h.rec.ev.OnError(netErr)
	h.loop.RunPending()
	h.loop.Advance(10 * time.Second)
	assert.Equal(t, 2, h.rec.starts, "second transient failure in a row is not retried")
}

func TestError_PermanentDisablesVoice(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	h.rec.ev.OnError(apperrors.NewCaptureFailed(apperrors.CapturePermanent, "no microphone", nil))
	h.loop.RunPending()

	assert.False(t, h.ctrl.Supported())
	assert.Equal(t, notify.SeverityWarning, h.notifier.last().Severity)

	h.ctrl.SetTurnOpen(false)
	h.ctrl.SetTurnOpen(true)
	assert.False(t, h.ctrl.Start())
	assert.Equal(t, 1, h.rec.starts)
}

func TestError_OtherNotRetried(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetTurnOpen(true)
	require.True(t, h.ctrl.Start())

	h.rec.ev.OnError(errors.New("aborted"))
	h.rec.ev.OnEnd()
	h.loop.RunPending()
	h.loop.Advance(10 * time.Second)

	assert.Equal(t, 1, h.rec.starts)
	assert.Len(t, h.notifier.alerts, 2)
	assert.Equal(t, notify.SeverityError, h.notifier.last().Severity)
	assert.Equal(t, 0, h.loop.PendingTimers())
}

func TestStart_SynchronousFailure(t *testing.T) {
	h := newHarness(t)
	h.rec.startErr = apperrors.ErrCaptureUnsupported
	h.ctrl.SetTurnOpen(true)

	assert.False(t, h.ctrl.Start())
	assert.False(t, h.ctrl.Supported())
	assert.Equal(t, StateIdle, h.ctrl.State())
}

func TestNilRecognizer(t *testing.T) {
	ctrl := NewController(eventloop.NewManual(time.Unix(0, 0)), nil, nil, zap.NewNop())
	ctrl.SetTurnOpen(true)

	assert.False(t, ctrl.Supported())
	assert.False(t, ctrl.Start())
	ctrl.Stop()
}
