package devices

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"gyani-interview/client/internal/capture"
	"gyani-interview/client/pkg/config"
	apperrors "gyani-interview/client/pkg/errors"
)

const outputPlaceholder = "{out}"

// transcriber is the part of the OpenAI client the recognizer calls
type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperRecognizer records one answer with a local recorder program, which
// stops on trailing silence, and transcribes it with Whisper
type WhisperRecognizer struct {
	client   transcriber
	model    string
	recorder []string
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWhisperRecognizer creates a recognizer. client may be nil when no API
// key is configured; the recognizer then reports itself unavailable.
func NewWhisperRecognizer(client *openai.Client, model, recorderCommand string, logger *zap.Logger) *WhisperRecognizer {
	r := &WhisperRecognizer{
		model:    model,
		recorder: config.Fields(recorderCommand),
		logger:   logger.With(zap.String("component", "recognizer")),
	}
	if client != nil {
		r.client = client
	}
	return r
}

// Available implements capture.Recognizer
func (r *WhisperRecognizer) Available() bool {
	return r.client != nil && lookup(r.recorder)
}

// Start implements capture.Recognizer
func (r *WhisperRecognizer) Start(ev capture.Events) error {
	if r.client == nil {
		return apperrors.NewCaptureFailed(apperrors.CapturePermanent, "speech-to-text is not configured", nil)
	}
	if !lookup(r.recorder) {
		return apperrors.NewCaptureFailed(apperrors.CapturePermanent, "recorder program not found", nil)
	}

	f, err := os.CreateTemp("", "answer-*.wav")
	if err != nil {
		return apperrors.NewCaptureFailed(apperrors.CaptureOther, "failed to create recording file", err)
	}
	path := f.Name()
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.mu.Unlock()

	args := recorderArgs(r.recorder, path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		os.Remove(path)
		return apperrors.NewCaptureFailed(apperrors.CapturePermanent, "failed to start recorder", err)
	}

	go r.run(ctx, cmd, path, ev)
	return nil
}

// Stop implements capture.Recognizer
func (r *WhisperRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *WhisperRecognizer) run(ctx context.Context, cmd *exec.Cmd, path string, ev capture.Events) {
	defer os.Remove(path)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ev.OnError(apperrors.NewCaptureFailed(apperrors.CaptureOther, "recorder failed", err))
		return
	}
	if ctx.Err() != nil {
		return
	}

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: path,
		Language: "en",
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		ev.OnError(ClassifyTranscriptionError(err))
		return
	}

	text := strings.TrimSpace(resp.Text)
	r.logger.Debug("Transcription finished", zap.Int("chars", len(text)))
	if text != "" {
		ev.OnResult(text)
	}
	ev.OnEnd()
}

// recorderArgs substitutes the output path into the recorder command line
func recorderArgs(command []string, path string) []string {
	args := make([]string, 0, len(command)+1)
	replaced := false
	for _, a := range command {
		if a == outputPlaceholder {
			a = path
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, path)
	}
	return args
}

// ClassifyTranscriptionError maps a speech-to-text failure onto the capture
// retry policy: network trouble and overloaded servers are transient, bad
// credentials are permanent, anything else is surfaced once.
func ClassifyTranscriptionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized, apiErr.HTTPStatusCode == http.StatusForbidden:
			return apperrors.NewCaptureFailed(apperrors.CapturePermanent, "speech-to-text rejected credentials", err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests, apiErr.HTTPStatusCode >= 500:
			return apperrors.NewCaptureFailed(apperrors.CaptureTransient, "speech-to-text unavailable", err)
		}
		return apperrors.NewCaptureFailed(apperrors.CaptureOther, "speech-to-text failed", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 500 {
		return apperrors.NewCaptureFailed(apperrors.CaptureTransient, "speech-to-text unavailable", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewCaptureFailed(apperrors.CaptureTransient, "network", err)
	}

	return apperrors.NewCaptureFailed(apperrors.CaptureOther, "speech-to-text failed", err)
}
