package realtime

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/conn"
	"github.com/codewandler/realtime-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2025-06-03"
)

type clientConfig struct {
	url            string
	model          string
	apiKey         string
	dialTimeout    time.Duration
	sessionTimeout time.Duration

	maxAttempts       int
	retryDelay        time.Duration
	keepaliveInterval time.Duration
	keepaliveTimeout  time.Duration

	transport   conn.Transport
	logger      *slog.Logger
	metrics     *metrics.Metrics
	playback    *audio.Sink
	toolHandler ToolHandler
	diagnostics DiagnosticFunc
	subscribers []Subscriber
}

func (c *clientConfig) validate() error {
	if c.transport != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	if c.url == "" {
		return fmt.Errorf("missing url")
	}
	return nil
}

type ClientOption func(*clientConfig)

// WithURL sets the realtime endpoint. The model is added as query parameter.
func WithURL(url string) ClientOption {
	return func(o *clientConfig) {
		o.url = url
	}
}

func WithModel(model string) ClientOption {
	return func(o *clientConfig) {
		o.model = model
	}
}

func WithKey(apiKey string) ClientOption {
	return func(o *clientConfig) {
		o.apiKey = apiKey
	}
}

func WithEnvKey(vars ...string) ClientOption {
	return func(o *clientConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				o.apiKey = k
				return
			}
		}
	}
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(o *clientConfig) {
		o.dialTimeout = d
	}
}

// WithSessionTimeout bounds how long Connect waits for the server to
// confirm the session configuration.
func WithSessionTimeout(d time.Duration) ClientOption {
	return func(o *clientConfig) {
		o.sessionTimeout = d
	}
}

// WithReconnect sets the dial attempts per connect or reconnect cycle and
// the fixed delay between them.
func WithReconnect(maxAttempts int, delay time.Duration) ClientOption {
	return func(o *clientConfig) {
		o.maxAttempts = maxAttempts
		o.retryDelay = delay
	}
}

// WithKeepalive sets the ping interval and pong timeout. A zero interval
// turns keepalive off.
func WithKeepalive(interval, timeout time.Duration) ClientOption {
	return func(o *clientConfig) {
		o.keepaliveInterval = interval
		o.keepaliveTimeout = timeout
	}
}

// WithTransport replaces the websocket transport, e.g. with an in-memory
// one in tests. URL, model and key are ignored then.
func WithTransport(t conn.Transport) ClientOption {
	return func(o *clientConfig) {
		o.transport = t
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientConfig) {
		o.logger = logger
	}
}

func WithDefaultLogger() ClientOption {
	return WithLogger(slog.Default())
}

// WithRegisterer registers the client metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(o *clientConfig) {
		o.metrics = metrics.New(reg)
	}
}

// WithPlayback routes assistant audio to sink and interrupts it when the
// user starts speaking.
func WithPlayback(sink *audio.Sink) ClientOption {
	return func(o *clientConfig) {
		o.playback = sink
	}
}

// WithToolHandler answers function calls of completed responses and asks
// for a follow-up response.
func WithToolHandler(h ToolHandler) ClientOption {
	return func(o *clientConfig) {
		o.toolHandler = h
	}
}

// WithDiagnostics receives every inbound message that could not be decoded.
func WithDiagnostics(fn DiagnosticFunc) ClientOption {
	return func(o *clientConfig) {
		o.diagnostics = fn
	}
}

// WithSubscriber subscribes s before the connection opens, so it sees the
// very first server event.
func WithSubscriber(s Subscriber) ClientOption {
	return func(o *clientConfig) {
		o.subscribers = append(o.subscribers, s)
	}
}

func WithOptions(opts ...ClientOption) ClientOption {
	return func(o *clientConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() ClientOption {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithURL(DefaultURL),
		WithModel(DefaultModel),
		WithDialTimeout(10*time.Second),
		WithSessionTimeout(10*time.Second),
		WithReconnect(conn.DefaultMaxAttempts, conn.DefaultRetryDelay),
		WithKeepalive(conn.DefaultKeepaliveInterval, conn.DefaultKeepaliveTimeout),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
		func(o *clientConfig) { o.metrics = metrics.Discard() },
	)
}
