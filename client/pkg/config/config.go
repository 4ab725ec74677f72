package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "gyani-interview/client/pkg/errors"
)

// Synthesizer backends
const (
	SynthBackendExec   = "exec"
	SynthBackendOpenAI = "openai"
)

// Config holds all client configuration
type Config struct {
	// App
	Env         string
	ControlPort string // Port for the local control API
	AutoStart   bool   // Start the interview session as soon as the client is up

	// Dialogue engine
	InterviewServerURL string        // Websocket endpoint of the dialogue engine
	BackendURL         string        // HTTP base URL for health check and initialization
	SkipBootstrap      bool          // Skip health check + initialize
	HandshakeTimeout   time.Duration // Websocket handshake timeout

	// Speech services
	OpenAIAPIKey  string
	OpenAIBaseURL string
	STTModel      string
	TTSModel      string
	TTSVoice      string

	// Devices
	VoiceInput      bool   // Voice input enabled at session start
	SynthBackend    string // "exec" or "openai"
	SynthCommand    string // On-device synthesizer, text is appended as last argument
	PlayerCommand   string // Clip player, audio is written to stdin
	RecorderCommand string // Recorder; the output wav path replaces {out}, or is appended
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		ControlPort:        getEnv("CONTROL_PORT", "8090"),
		AutoStart:          getEnvBool("AUTO_START", false),
		InterviewServerURL: getEnv("INTERVIEW_SERVER_URL", "ws://localhost:5000/ws"),
		BackendURL:         getEnv("BACKEND_URL", "http://localhost:5000"),
		SkipBootstrap:      getEnvBool("SKIP_BOOTSTRAP", false),
		HandshakeTimeout:   time.Duration(getEnvInt("HANDSHAKE_TIMEOUT_MS", 20000)) * time.Millisecond,
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		STTModel:           getEnv("STT_MODEL", "whisper-1"),
		TTSModel:           getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:           getEnv("TTS_VOICE", "alloy"),
		VoiceInput:         getEnvBool("VOICE_INPUT", true),
		SynthBackend:       getEnv("SYNTH_BACKEND", SynthBackendExec),
		SynthCommand:       getEnv("SYNTH_COMMAND", "espeak"),
		PlayerCommand:      getEnv("PLAYER_COMMAND", "ffplay -nodisp -autoexit -loglevel quiet -"),
		RecorderCommand:    getEnv("RECORDER_COMMAND", "rec -q -c 1 -r 16000 -b 16 {out} silence 1 0.1 1% 1 1.5 1% trim 0 60"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.InterviewServerURL == "" {
		return apperrors.NewConfigMissingRequired("INTERVIEW_SERVER_URL")
	}
	u, err := url.Parse(c.InterviewServerURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return apperrors.NewConfigValidationFailed("INTERVIEW_SERVER_URL", "must be a ws:// or wss:// URL")
	}
	if !c.SkipBootstrap && c.BackendURL == "" {
		return apperrors.NewConfigMissingRequired("BACKEND_URL")
	}
	if c.ControlPort == "" {
		return apperrors.NewConfigMissingRequired("CONTROL_PORT")
	}
	if c.HandshakeTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("HANDSHAKE_TIMEOUT_MS", "must be positive")
	}
	switch c.SynthBackend {
	case SynthBackendExec:
	case SynthBackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return apperrors.NewConfigValidationFailed("SYNTH_BACKEND", "openai backend requires OPENAI_API_KEY")
		}
	default:
		return apperrors.NewConfigValidationFailed("SYNTH_BACKEND", fmt.Sprintf("unknown backend %q", c.SynthBackend))
	}
	// OpenAI key is optional: without it voice capture is reported as unsupported
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Fields splits a command setting into program and arguments
func Fields(command string) []string {
	return strings.Fields(command)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
