package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"gyani-interview/client/internal/devices"
	"gyani-interview/client/pkg/config"
)

func TestNewOpenAIClient(t *testing.T) {
	assert.Nil(t, newOpenAIClient(&config.Config{}))
	assert.NotNil(t, newOpenAIClient(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: "http://localhost:4000/v1"}))
}

func TestNewSynthesizer(t *testing.T) {
	log := zap.NewNop()
	player := devices.NewExecPlayer("cat", log)

	execCfg := &config.Config{SynthBackend: config.SynthBackendExec, SynthCommand: "espeak"}
	assert.IsType(t, &devices.ExecSynthesizer{}, newSynthesizer(execCfg, nil, player, log))

	aiCfg := &config.Config{SynthBackend: config.SynthBackendOpenAI, OpenAIAPIKey: "sk-test", TTSModel: "tts-1", TTSVoice: "alloy"}
	assert.IsType(t, &devices.OpenAISynthesizer{}, newSynthesizer(aiCfg, newOpenAIClient(aiCfg), player, log))

	// Without a client the openai backend falls back to the local program
	assert.IsType(t, &devices.ExecSynthesizer{}, newSynthesizer(aiCfg, nil, player, log))
}
