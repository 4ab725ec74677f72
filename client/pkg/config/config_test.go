package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gyani-interview/client/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INTERVIEW_SERVER_URL", "")
	t.Setenv("SYNTH_BACKEND", "")
	t.Setenv("HANDSHAKE_TIMEOUT_MS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:5000/ws", cfg.InterviewServerURL)
	assert.Equal(t, 20*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, SynthBackendExec, cfg.SynthBackend)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INTERVIEW_SERVER_URL", "wss://interview.example.com/ws")
	t.Setenv("AUTO_START", "true")
	t.Setenv("VOICE_INPUT", "off")
	t.Setenv("HANDSHAKE_TIMEOUT_MS", "1500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://interview.example.com/ws", cfg.InterviewServerURL)
	assert.True(t, cfg.AutoStart)
	assert.False(t, cfg.VoiceInput)
	assert.Equal(t, 1500*time.Millisecond, cfg.HandshakeTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ControlPort:        "8090",
			InterviewServerURL: "ws://localhost:5000/ws",
			BackendURL:         "http://localhost:5000",
			HandshakeTimeout:   time.Second,
			SynthBackend:       SynthBackendExec,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"http scheme rejected", func(c *Config) { c.InterviewServerURL = "http://localhost:5000" }, true},
		{"missing backend", func(c *Config) { c.BackendURL = "" }, true},
		{"missing backend skipped", func(c *Config) { c.BackendURL = ""; c.SkipBootstrap = true }, false},
		{"openai synth needs key", func(c *Config) { c.SynthBackend = SynthBackendOpenAI }, true},
		{"unknown synth", func(c *Config) { c.SynthBackend = "festival" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"ffplay", "-nodisp", "-"}, Fields("ffplay  -nodisp -"))
	assert.Empty(t, Fields("   "))
}
