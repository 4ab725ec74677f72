package devices

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"gyani-interview/client/internal/playback"
	"gyani-interview/client/pkg/config"
)

// ExecSynthesizer speaks through an on-device program such as espeak or say.
// The text is passed as the last argument.
type ExecSynthesizer struct {
	command []string
	logger  *zap.Logger
}

// NewExecSynthesizer creates a synthesizer for the given command line
func NewExecSynthesizer(command string, logger *zap.Logger) *ExecSynthesizer {
	return &ExecSynthesizer{
		command: config.Fields(command),
		logger:  logger.With(zap.String("component", "synthesizer")),
	}
}

// Available reports whether the synthesizer program is installed
func (s *ExecSynthesizer) Available() bool {
	return lookup(s.command)
}

// Speak implements playback.Synthesizer
func (s *ExecSynthesizer) Speak(text string, ev playback.Events) (playback.Handle, error) {
	args := append(append([]string{}, s.command...), text)
	return runProcess(args, nil, ev, s.logger)
}

// OpenAISynthesizer renders speech with the OpenAI TTS endpoint and plays it
// through a clip player
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	player playback.Player
	logger *zap.Logger
}

// NewOpenAISynthesizer creates a TTS synthesizer
func NewOpenAISynthesizer(client *openai.Client, model, voice string, player playback.Player, logger *zap.Logger) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: client,
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
		player: player,
		logger: logger.With(zap.String("component", "synthesizer"), zap.String("backend", "openai")),
	}
}

// ttsHandle cancels the request, or stops playback once it has started
type ttsHandle struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	inner   playback.Handle
}

func (h *ttsHandle) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	if h.inner != nil {
		h.inner.Stop()
	}
}

// attach records the player handle; it reports false if Stop already ran
func (h *ttsHandle) attach(inner playback.Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		inner.Stop()
		return false
	}
	h.inner = inner
	return true
}

// Speak implements playback.Synthesizer
func (s *OpenAISynthesizer) Speak(text string, ev playback.Events) (playback.Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &ttsHandle{cancel: cancel}

	go func() {
		audio, err := s.render(ctx, text)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("Speech synthesis failed", zap.Error(err))
			if ev.OnError != nil {
				ev.OnError(err)
			}
			return
		}

		inner, err := s.player.Play(audio, ev)
		if err != nil {
			if ev.OnError != nil {
				ev.OnError(err)
			}
			return
		}
		handle.attach(inner)
	}()

	return handle, nil
}

func (s *OpenAISynthesizer) render(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts audio: %w", err)
	}
	s.logger.Debug("Speech rendered", zap.Int("bytes", len(audio)))
	return audio, nil
}
