package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus collectors of the realtime client.
type Metrics struct {
	// connection
	ConnectionState  prometheus.Gauge
	DialAttempts     prometheus.Counter
	DialFailures     prometheus.Counter
	Reconnects       prometheus.Counter
	KeepaliveFailure prometheus.Counter
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	SendFailures     prometheus.Counter
	QueueDepth       prometheus.Gauge

	// protocol
	UndecodableMessages prometheus.Counter
	ServerErrors        prometheus.Counter

	// audio
	ChunksEmitted   prometheus.Counter
	CaptureDropped  prometheus.Counter
	PlaybackDropped prometheus.Counter
	PlaybackQueued  prometheus.Gauge
}

// New creates all collectors and registers them with reg. A nil reg creates
// unregistered collectors, which keeps every call site nil-check free.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Current connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=closed)",
		}),
		DialAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dial_attempts_total",
			Help: "Total number of transport dial attempts",
		}),
		DialFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dial_failures_total",
			Help: "Total number of failed transport dial attempts",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Total number of reconnect cycles started after a transport error",
		}),
		KeepaliveFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_keepalive_failures_total",
			Help: "Total number of keepalive probes that were not acknowledged in time",
		}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total number of messages written to the transport",
		}),
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_messages_received_total",
			Help: "Total number of messages read from the transport",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Total number of failed transport writes",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_outbound_queue_depth",
			Help: "Number of messages waiting in the outbound queue",
		}),
		UndecodableMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_undecodable_messages_total",
			Help: "Total number of inbound messages that could not be decoded",
		}),
		ServerErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_server_errors_total",
			Help: "Total number of error events received from the server",
		}),
		ChunksEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_audio_chunks_emitted_total",
			Help: "Total number of complete wire audio chunks produced by capture",
		}),
		CaptureDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_audio_capture_dropped_total",
			Help: "Total number of captured chunks dropped because the consumer was behind",
		}),
		PlaybackDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_audio_playback_dropped_total",
			Help: "Total number of playback chunks dropped (output stopped or buffer full)",
		}),
		PlaybackQueued: f.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_audio_playback_buffered_bytes",
			Help: "Bytes of native audio scheduled for playback",
		}),
	}
}

// Discard returns unregistered collectors.
func Discard() *Metrics {
	return New(nil)
}
