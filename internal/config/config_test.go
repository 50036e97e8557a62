package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_UsesStatefulConverter(t *testing.T) {
	kind, err := audio.ParseConverterKind(Default().Audio.Converter)
	require.NoError(t, err)
	assert.Equal(t, audio.ConverterSoxr, kind)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
connection:
  model: gpt-test
  retry_delay: 250ms
  max_attempts: 3
session:
  voice: shimmer
  instructions: be brief
  output_audio_format: g711_ulaw
  turn_detection:
    type: semantic_vad
    eagerness: high
audio:
  converter: beep
  input_sample_rate: 48000
  input_channels: 2
metrics:
  addr: ":9090"
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-test", cfg.Connection.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.RetryDelay)
	assert.Equal(t, 3, cfg.Connection.MaxAttempts)
	// untouched defaults survive
	assert.Equal(t, "wss://api.openai.com/v1/realtime", cfg.Connection.URL)
	assert.Equal(t, 15*time.Second, cfg.Connection.KeepaliveInterval)

	assert.Equal(t, audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.Int16}, cfg.Audio.InputFormat())
	assert.Equal(t, audio.WireFormat, cfg.Audio.OutputFormat())
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "connection: [\n"))
	require.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeConfig(t, "connection:\n  max_attempts: 0\n"))
	require.ErrorContains(t, err, "connection config: max_attempts")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"modality", func(c *Config) { c.Session.Modalities = []string{"video"} }, `unknown modality "video"`},
		{"audio format", func(c *Config) { c.Session.InputAudioFormat = "mp3" }, `unknown audio format "mp3"`},
		{"temperature", func(c *Config) { c.Session.Temperature = 2 }, "temperature"},
		{"threshold", func(c *Config) { c.Session.TurnDetection.Threshold = 1.5 }, "threshold"},
		{"eagerness", func(c *Config) {
			c.Session.TurnDetection = TurnDetectionConfig{Type: "semantic_vad", Eagerness: "eager"}
		}, `unknown eagerness "eager"`},
		{"turn detection", func(c *Config) { c.Session.TurnDetection.Type = "client_vad" }, "turn_detection.type"},
		{"converter", func(c *Config) { c.Audio.Converter = "sinc" }, "audio config"},
		{"input format", func(c *Config) { c.Audio.InputChannels = 0 }, "input"},
		{"frame", func(c *Config) { c.Audio.Frame = 0 }, "frame"},
		{"keepalive", func(c *Config) { c.Connection.KeepaliveTimeout = 0 }, "keepalive_timeout"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, `unknown level "trace"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			require.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestValidate_JoinsSections(t *testing.T) {
	c := Default()
	c.Connection.URL = ""
	c.Logging.Level = ""

	err := c.Validate()
	require.ErrorContains(t, err, "connection config")
	require.ErrorContains(t, err, "logging config")
}

func TestSessionConfig_Update(t *testing.T) {
	t.Run("server vad", func(t *testing.T) {
		s := Default().Session
		s.Voice = "shimmer"
		s.Instructions = "be brief"

		u := s.Update()
		assert.Equal(t, events.VoiceShimmer, *u.Voice)
		assert.Equal(t, "be brief", *u.Instructions)
		assert.Equal(t, []events.Modality{events.ModalityAudio, events.ModalityText}, u.Modalities)
		assert.Equal(t, events.ServerVAD(0.5, 300, 500), u.TurnDetection)
		assert.Nil(t, u.Temperature)
		assert.Nil(t, u.InputAudioFormat)
	})

	t.Run("sparse", func(t *testing.T) {
		var s SessionConfig
		assert.True(t, s.Update().Empty())
	})

	t.Run("disabled", func(t *testing.T) {
		s := SessionConfig{
			TurnDetection:   TurnDetectionConfig{Type: "none"},
			MaxOutputTokens: -1,
		}
		data, err := events.Encode(&events.SessionUpdateEvent{Session: s.Update()})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"turn_detection":null`)
		assert.Contains(t, string(data), `"max_response_output_tokens":"inf"`)
	})
}
