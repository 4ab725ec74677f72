package devices

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gyani-interview/client/internal/capture"
	"gyani-interview/client/internal/playback"
	apperrors "gyani-interview/client/pkg/errors"
)

func requireProgram(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

type outcome struct {
	ended bool
	err   error
}

func playbackEvents() (playback.Events, <-chan outcome) {
	done := make(chan outcome, 1)
	return playback.Events{
		OnEnd:   func() { done <- outcome{ended: true} },
		OnError: func(err error) { done <- outcome{err: err} },
	}, done
}

func waitOutcome(t *testing.T, done <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("device never finished")
		return outcome{}
	}
}

func TestExecPlayer_PlaysToCompletion(t *testing.T) {
	requireProgram(t, "cat")
	p := NewExecPlayer("cat", zap.NewNop())
	assert.True(t, p.Available())

	ev, done := playbackEvents()
	_, err := p.Play([]byte("fake mp3 bytes"), ev)
	require.NoError(t, err)

	assert.True(t, waitOutcome(t, done).ended)
}

func TestExecPlayer_NonZeroExitIsError(t *testing.T) {
	requireProgram(t, "false")
	p := NewExecPlayer("false", zap.NewNop())

	ev, done := playbackEvents()
	_, err := p.Play(nil, ev)
	require.NoError(t, err)

	assert.Error(t, waitOutcome(t, done).err)
}

func TestExecPlayer_StopSuppressesCallbacks(t *testing.T) {
	requireProgram(t, "sleep")
	p := NewExecPlayer("sleep 10", zap.NewNop())

	ev, done := playbackEvents()
	h, err := p.Play(nil, ev)
	require.NoError(t, err)
	h.Stop()
	h.Stop()

	select {
	case o := <-done:
		t.Fatalf("unexpected callback after stop: %+v", o)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestExecPlayer_MissingProgram(t *testing.T) {
	p := NewExecPlayer("definitely-not-a-player-binary", zap.NewNop())
	assert.False(t, p.Available())

	ev, _ := playbackEvents()
	_, err := p.Play([]byte("x"), ev)
	assert.Error(t, err)
}

func TestExecSynthesizer_AppendsText(t *testing.T) {
	requireProgram(t, "echo")
	s := NewExecSynthesizer("echo", zap.NewNop())

	ev, done := playbackEvents()
	_, err := s.Speak("Hello there", ev)
	require.NoError(t, err)
	assert.True(t, waitOutcome(t, done).ended)
}

func TestRecorderArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"rec", "-q", "/tmp/a.wav", "silence", "1"},
		recorderArgs([]string{"rec", "-q", "{out}", "silence", "1"}, "/tmp/a.wav"))
	assert.Equal(t,
		[]string{"arecord", "-d", "5", "/tmp/a.wav"},
		recorderArgs([]string{"arecord", "-d", "5"}, "/tmp/a.wav"))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTranscriptionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.CaptureKind
	}{
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, apperrors.CapturePermanent},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, apperrors.CaptureTransient},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, apperrors.CaptureTransient},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, apperrors.CaptureOther},
		{"gateway", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, apperrors.CaptureTransient},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, apperrors.CaptureTransient},
		{"other", errors.New("unexpected"), apperrors.CaptureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTranscriptionError(tt.err)
			assert.Equal(t, tt.want, apperrors.CaptureKindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	if f.err != nil {
		return openai.AudioResponse{}, f.err
	}
	return openai.AudioResponse{Text: f.text}, nil
}

func captureEvents() (capture.Events, <-chan string, <-chan error, <-chan struct{}) {
	results := make(chan string, 1)
	errs := make(chan error, 1)
	ended := make(chan struct{}, 1)
	return capture.Events{
		OnResult: func(text string) { results <- text },
		OnError:  func(err error) { errs <- err },
		OnEnd:    func() { ended <- struct{}{} },
	}, results, errs, ended
}

func TestWhisperRecognizer_TranscribesRecording(t *testing.T) {
	requireProgram(t, "true")
	r := &WhisperRecognizer{
		client:   &fakeTranscriber{text: "  I closed a big deal.  "},
		model:    openai.Whisper1,
		recorder: []string{"true", "{out}"},
		logger:   zap.NewNop(),
	}
	require.True(t, r.Available())

	ev, results, _, ended := captureEvents()
	require.NoError(t, r.Start(ev))

	select {
	case text := <-results:
		assert.Equal(t, "I closed a big deal.", text)
	case <-time.After(5 * time.Second):
		t.Fatal("no transcript")
	}
	<-ended
}

func TestWhisperRecognizer_TransientFailure(t *testing.T) {
	requireProgram(t, "true")
	r := &WhisperRecognizer{
		client:   &fakeTranscriber{err: &openai.APIError{HTTPStatusCode: 503}},
		model:    openai.Whisper1,
		recorder: []string{"true"},
		logger:   zap.NewNop(),
	}

	ev, _, errs, _ := captureEvents()
	require.NoError(t, r.Start(ev))

	select {
	case err := <-errs:
		assert.Equal(t, apperrors.CaptureTransient, apperrors.CaptureKindOf(err))
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestWhisperRecognizer_Unconfigured(t *testing.T) {
	r := NewWhisperRecognizer(nil, openai.Whisper1, "rec {out}", zap.NewNop())
	assert.False(t, r.Available())

	ev, _, _, _ := captureEvents()
	err := r.Start(ev)
	assert.Equal(t, apperrors.CapturePermanent, apperrors.CaptureKindOf(err))
}
