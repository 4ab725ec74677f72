package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gyani-interview/client/internal/api"
	"gyani-interview/client/internal/bootstrap"
	"gyani-interview/client/internal/capture"
	"gyani-interview/client/internal/connection"
	"gyani-interview/client/internal/constants"
	"gyani-interview/client/internal/devices"
	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	"gyani-interview/client/internal/playback"
	"gyani-interview/client/internal/session"
	"gyani-interview/client/pkg/config"
	"gyani-interview/client/pkg/logger"
)

const (
	bootstrapTimeout = 30 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting interview client...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Backend must be up and the bot initialized before the interview can start
	if !cfg.SkipBootstrap {
		ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
		err := bootstrap.NewClient(cfg.BackendURL, bootstrapTimeout, log).Run(ctx)
		cancel()
		if err != nil {
			log.Fatal("Cannot connect to backend server. Please ensure the backend is running.", zap.Error(err))
		}
	}

	// Speech devices
	aiClient := newOpenAIClient(cfg)
	player := devices.NewExecPlayer(cfg.PlayerCommand, log)
	if !player.Available() {
		log.Warn("Clip player not found, server audio will be skipped", zap.String("command", cfg.PlayerCommand))
	}
	synth := newSynthesizer(cfg, aiClient, player, log)
	recognizer := devices.NewWhisperRecognizer(aiClient, cfg.STTModel, cfg.RecorderCommand, log)

	// Engine
	loop := eventloop.New(log)
	center := notify.NewCenter(loop, constants.AlertTTL, log)
	channel := connection.NewManager(connection.Options{
		URL:              cfg.InterviewServerURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, connection.NewWSDialer(cfg.HandshakeTimeout), loop, center, log)
	queue := playback.NewQueue(loop, player, synth, center, log)
	voice := capture.NewController(loop, recognizer, center, log)
	if !cfg.VoiceInput {
		voice.SetEnabled(false)
	}
	if !voice.Supported() {
		log.Info("Voice input unsupported, continuing with text only")
	}

	sess := session.New(session.Deps{
		Scheduler: loop,
		Channel:   channel,
		Playback:  queue,
		Capture:   voice,
		Notifier:  center,
		Logger:    log,
	})

	// Control API
	srv := &http.Server{
		Addr:    ":" + cfg.ControlPort,
		Handler: api.NewServer(sess, loop, center, log).Router(cfg.IsProduction()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The loop outlives the signal so shutdown can still end the session on it
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("Control API started", zap.String("port", cfg.ControlPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := loop.Call(shutdownCtx, func() { sess.End(session.EndByUser) }); err != nil {
			log.Warn("Failed to end session cleanly", zap.Error(err))
		}
		center.Close()
		stopLoop()
		return nil
	})

	if cfg.AutoStart {
		loop.Post(func() {
			id := sess.Start()
			log.Info("Interview started", zap.String("session_id", id))
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Client stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	log.Info("Client exited")
}

// newOpenAIClient returns nil when no API key is configured
func newOpenAIClient(cfg *config.Config) *openai.Client {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// newSynthesizer picks the fallback speech backend for messages without audio
func newSynthesizer(cfg *config.Config, client *openai.Client, player playback.Player, log *zap.Logger) playback.Synthesizer {
	if cfg.SynthBackend == config.SynthBackendOpenAI && client != nil {
		return devices.NewOpenAISynthesizer(client, cfg.TTSModel, cfg.TTSVoice, player, log)
	}

	synth := devices.NewExecSynthesizer(cfg.SynthCommand, log)
	if !synth.Available() {
		log.Warn("Speech synthesizer not found, text-only AI messages will be skipped", zap.String("command", cfg.SynthCommand))
	}
	return synth
}
