// Package config loads the YAML configuration of the realtime CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/events"
	"gopkg.in/yaml.v3"
)

// Config is the complete CLI configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Session    SessionConfig    `yaml:"session"`
	Audio      AudioConfig      `yaml:"audio"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ConnectionConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
	// APIKey falls back to the environment when empty.
	APIKey            string        `yaml:"api_key"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	KeepaliveTimeout  time.Duration `yaml:"keepalive_timeout"`
}

// SessionConfig is the session configuration sent on connect. Empty
// fields are left to the server.
type SessionConfig struct {
	Instructions       string              `yaml:"instructions"`
	Voice              string              `yaml:"voice"`
	Modalities         []string            `yaml:"modalities"`
	InputAudioFormat   string              `yaml:"input_audio_format"`
	OutputAudioFormat  string              `yaml:"output_audio_format"`
	TranscriptionModel string              `yaml:"transcription_model"`
	Temperature        float64             `yaml:"temperature"`
	MaxOutputTokens    int                 `yaml:"max_output_tokens"`
	TurnDetection      TurnDetectionConfig `yaml:"turn_detection"`
}

type TurnDetectionConfig struct {
	// Type is server_vad, semantic_vad or none.
	Type              string  `yaml:"type"`
	Threshold         float64 `yaml:"threshold"`
	PrefixPaddingMs   int     `yaml:"prefix_padding_ms"`
	SilenceDurationMs int     `yaml:"silence_duration_ms"`
	Eagerness         string  `yaml:"eagerness"`
}

// AudioConfig describes the raw PCM files standing in for the devices.
type AudioConfig struct {
	Converter        string        `yaml:"converter"`
	Quality          int           `yaml:"quality"`
	InputSampleRate  int           `yaml:"input_sample_rate"`
	InputChannels    int           `yaml:"input_channels"`
	OutputSampleRate int           `yaml:"output_sample_rate"`
	OutputChannels   int           `yaml:"output_channels"`
	Frame            time.Duration `yaml:"frame"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set.
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			URL:               "wss://api.openai.com/v1/realtime",
			Model:             "gpt-4o-realtime-preview-2025-06-03",
			DialTimeout:       10 * time.Second,
			SessionTimeout:    10 * time.Second,
			MaxAttempts:       5,
			RetryDelay:        time.Second,
			KeepaliveInterval: 15 * time.Second,
			KeepaliveTimeout:  5 * time.Second,
		},
		Session: SessionConfig{
			Modalities: []string{"audio", "text"},
			TurnDetection: TurnDetectionConfig{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMs:   300,
				SilenceDurationMs: 500,
			},
		},
		Audio: AudioConfig{
			Converter:        audio.ConverterSoxr.String(),
			Quality:          audio.DefaultQuality,
			InputSampleRate:  audio.WireFormat.SampleRate,
			InputChannels:    1,
			OutputSampleRate: audio.WireFormat.SampleRate,
			OutputChannels:   1,
			Frame:            audio.DefaultFrameDuration,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return errors.Join(
		prefix("connection", c.Connection.Validate()),
		prefix("session", c.Session.Validate()),
		prefix("audio", c.Audio.Validate()),
		prefix("logging", c.Logging.Validate()),
	)
}

func prefix(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s config: %w", section, err)
}

func (c *ConnectionConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryDelay < 0 || c.DialTimeout < 0 || c.SessionTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.KeepaliveInterval > 0 && c.KeepaliveTimeout <= 0 {
		return fmt.Errorf("keepalive_timeout must be positive when keepalive is enabled")
	}
	return nil
}

func (s *SessionConfig) Validate() error {
	for _, m := range s.Modalities {
		if m != string(events.ModalityAudio) && m != string(events.ModalityText) {
			return fmt.Errorf("unknown modality %q", m)
		}
	}
	for _, f := range []string{s.InputAudioFormat, s.OutputAudioFormat} {
		if f != "" && !events.AudioFormat(f).Valid() {
			return fmt.Errorf("unknown audio format %q", f)
		}
	}
	if s.Temperature != 0 && (s.Temperature < 0.6 || s.Temperature > 1.2) {
		return fmt.Errorf("temperature must be between 0.6 and 1.2, got %g", s.Temperature)
	}
	switch events.TurnDetectionType(s.TurnDetection.Type) {
	case "", events.TurnDetectionNone:
	case events.TurnDetectionServerVAD:
		if s.TurnDetection.Threshold < 0 || s.TurnDetection.Threshold > 1 {
			return fmt.Errorf("turn_detection.threshold must be between 0 and 1, got %g", s.TurnDetection.Threshold)
		}
	case events.TurnDetectionSemanticVAD:
		switch events.Eagerness(s.TurnDetection.Eagerness) {
		case "", events.EagernessLow, events.EagernessMedium, events.EagernessHigh, events.EagernessAuto:
		default:
			return fmt.Errorf("unknown eagerness %q", s.TurnDetection.Eagerness)
		}
	default:
		return fmt.Errorf("unknown turn_detection.type %q", s.TurnDetection.Type)
	}
	return nil
}

// Update converts the configured fields to a sparse session update.
func (s *SessionConfig) Update() events.SessionUpdate {
	var u events.SessionUpdate
	if s.Instructions != "" {
		u.Instructions = events.Ptr(s.Instructions)
	}
	if s.Voice != "" {
		u.Voice = events.Ptr(events.Voice(s.Voice))
	}
	for _, m := range s.Modalities {
		u.Modalities = append(u.Modalities, events.Modality(m))
	}
	if s.InputAudioFormat != "" {
		u.InputAudioFormat = events.Ptr(events.AudioFormat(s.InputAudioFormat))
	}
	if s.OutputAudioFormat != "" {
		u.OutputAudioFormat = events.Ptr(events.AudioFormat(s.OutputAudioFormat))
	}
	if s.TranscriptionModel != "" {
		u.InputAudioTranscription = &events.Transcription{Model: s.TranscriptionModel}
	}
	if s.Temperature != 0 {
		u.Temperature = events.Ptr(s.Temperature)
	}
	switch {
	case s.MaxOutputTokens > 0:
		u.MaxResponseOutputTokens = events.Ptr(events.MaxTokens(s.MaxOutputTokens))
	case s.MaxOutputTokens < 0:
		u.MaxResponseOutputTokens = events.Ptr(events.MaxTokensInf)
	}

	td := s.TurnDetection
	switch events.TurnDetectionType(td.Type) {
	case events.TurnDetectionServerVAD:
		u.TurnDetection = events.ServerVAD(td.Threshold, td.PrefixPaddingMs, td.SilenceDurationMs)
	case events.TurnDetectionSemanticVAD:
		u.TurnDetection = events.SemanticVAD(events.Eagerness(td.Eagerness))
	case events.TurnDetectionNone:
		u.TurnDetection = events.NoTurnDetection()
	}
	return u
}

func (a *AudioConfig) Validate() error {
	if _, err := audio.ParseConverterKind(a.Converter); err != nil {
		return err
	}
	if err := a.InputFormat().Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := a.OutputFormat().Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if a.Frame <= 0 {
		return fmt.Errorf("frame must be positive, got %s", a.Frame)
	}
	return nil
}

// InputFormat is the int16 format of the input file.
func (a *AudioConfig) InputFormat() audio.Format {
	return audio.Format{SampleRate: a.InputSampleRate, Channels: a.InputChannels, Encoding: audio.Int16}
}

// OutputFormat is the int16 format the output file is written in.
func (a *AudioConfig) OutputFormat() audio.Format {
	return audio.Format{SampleRate: a.OutputSampleRate, Channels: a.OutputChannels, Encoding: audio.Int16}
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown level %q", l.Level)
}
