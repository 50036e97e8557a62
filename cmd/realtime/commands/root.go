package commands

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/codewandler/realtime-go/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Realtime voice model CLI",
	Long: `realtime - talk to a realtime voice model over a websocket.

The API key is read from the config file or from OPENAI_KEY / OPENAI_API_KEY.

Examples:
  # Ask a question recorded as 24kHz mono pcm16
  realtime chat --in question.pcm --out answer.wav

  # Inspect a captured event stream
  realtime decode session.jsonl
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Command() *cobra.Command {
	return rootCmd
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(decodeCmd)
}

func initLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// loadConfig reads --config, or the defaults without it. Flags override
// file values.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if !verbose {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		}
	}
	return cfg, nil
}

// serveMetrics exposes reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry) (stop func()) {
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("err", err))
		}
	}()
	return func() { _ = srv.Close() }
}
