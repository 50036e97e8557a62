package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/codewandler/realtime-go"
	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/events"
	"github.com/codewandler/realtime-go/internal/config"
	"github.com/codewandler/realtime-go/internal/pcmfile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Stream an audio file as microphone input and record the answer",
	Long: `Connect, stream --in at real time as microphone input and write the
assistant audio to --out. Transcripts are printed as they complete.

--in is raw pcm16 in the configured input format, or a .wav file.
--out is raw pcm16 in the configured output format, or a .wav file.

Examples:
  realtime chat --in question.pcm --out answer.pcm
  realtime chat --config chat.yaml --in question.wav --out answer.wav
  realtime chat --text "Tell me a joke" --out joke.wav`,
	RunE: runChat,
}

var (
	chatIn           string
	chatOut          string
	chatText         string
	chatVoice        string
	chatInstructions string
	chatWait         time.Duration
)

func init() {
	chatCmd.Flags().StringVar(&chatIn, "in", "", "input audio file (.pcm or .wav)")
	chatCmd.Flags().StringVar(&chatOut, "out", "", "output audio file (.pcm or .wav)")
	chatCmd.Flags().StringVar(&chatText, "text", "", "send a text message instead of audio")
	chatCmd.Flags().StringVar(&chatVoice, "voice", "", "voice, overrides the config file")
	chatCmd.Flags().StringVar(&chatInstructions, "instructions", "", "instructions, overrides the config file")
	chatCmd.Flags().DurationVar(&chatWait, "wait", 30*time.Second, "how long to wait for the answer")
}

func runChat(cmd *cobra.Command, _ []string) error {
	if (chatIn == "") == (chatText == "") {
		return fmt.Errorf("exactly one of --in and --text is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatVoice != "" {
		cfg.Session.Voice = chatVoice
	}
	if chatInstructions != "" {
		cfg.Session.Instructions = chatInstructions
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		defer serveMetrics(cfg.Metrics.Addr, reg)()
	}

	kind, _ := audio.ParseConverterKind(cfg.Audio.Converter)
	rec, err := newRecorder(chatOut, cfg.Audio.OutputFormat())
	if err != nil {
		return err
	}
	defer rec.close()

	sink, err := audio.NewSink(rec.output,
		audio.WithSinkConverter(kind),
		audio.WithSinkLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	if err := sink.Start(); err != nil {
		return err
	}
	defer sink.Stop()

	out := cmd.OutOrStdout()
	done := make(chan struct{}, 1)
	client := realtime.New(append(clientOptions(cfg),
		realtime.WithRegisterer(reg),
		realtime.WithPlayback(sink),
		realtime.WithSubscriber(realtime.SubscriberFunc(func(evt events.ServerEvent) {
			printEvent(out, evt)
			if r, ok := evt.(*events.ResponseDoneEvent); ok && len(r.Response.Output) > 0 {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		})),
		realtime.WithDiagnostics(func(data []byte, err error) {
			printError(out, "undecodable event (%d bytes): %v", len(data), err)
		}),
	)...)
	defer client.Close()

	if err := client.Connect(ctx, cfg.Session.Update()); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	session := client.Configuration()
	printInfo(out, "connected: session %s, voice %s, output %s", session.ID, session.Voice, session.OutputAudioFormat)

	if chatText != "" {
		printLine(out, userStyle, "user", chatText)
		if err := client.UserInput(chatText, true); err != nil {
			return err
		}
	} else if err := streamFile(ctx, client, cfg, kind); err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(chatWait):
		printWarning(out, "no answer after %s", chatWait)
	case <-client.Done():
	case <-ctx.Done():
	}

	// let the sink play out what is scheduled
	for sink.Buffered() > 0 && ctx.Err() == nil {
		time.Sleep(cfg.Audio.Frame)
	}
	return nil
}

func clientOptions(cfg *config.Config) []realtime.ClientOption {
	c := cfg.Connection
	opts := []realtime.ClientOption{
		realtime.WithDefaultLogger(),
		realtime.WithURL(c.URL),
		realtime.WithModel(c.Model),
		realtime.WithDialTimeout(c.DialTimeout),
		realtime.WithSessionTimeout(c.SessionTimeout),
		realtime.WithReconnect(c.MaxAttempts, c.RetryDelay),
		realtime.WithKeepalive(c.KeepaliveInterval, c.KeepaliveTimeout),
	}
	if c.APIKey != "" {
		opts = append(opts, realtime.WithKey(c.APIKey))
	}
	return opts
}

// streamFile plays --in as microphone and commits it when the server does
// not detect turns.
func streamFile(ctx context.Context, client *realtime.Client, cfg *config.Config, kind audio.ConverterKind) error {
	r, format, err := openInput(chatIn, cfg.Audio.InputFormat())
	if err != nil {
		return err
	}
	defer r.Close()

	in := pcmfile.NewInput(r, format, pcmfile.WithInputLogger(slog.Default()))
	acc := audio.NewAccumulator(
		audio.WithConverter(kind),
		audio.WithQuality(cfg.Audio.Quality),
		audio.WithAccumulatorLogger(slog.Default()),
	)
	capture, err := client.StartCapture(ctx, in,
		audio.WithFrameDuration(cfg.Audio.Frame),
		audio.WithAccumulator(acc),
	)
	if err != nil {
		return err
	}

	select {
	case <-in.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := in.Err(); err != nil {
		return err
	}
	if err := capture.Stop(); err != nil {
		return err
	}

	if cfg.Session.TurnDetection.Type == string(events.TurnDetectionServerVAD) ||
		cfg.Session.TurnDetection.Type == string(events.TurnDetectionSemanticVAD) {
		return nil
	}
	if err := client.CommitAudio(); err != nil {
		return err
	}
	return client.CreateResponse(nil)
}

func openInput(path string, f audio.Format) (io.ReadCloser, audio.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, f, fmt.Errorf("failed to open input: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return file, f, nil
	}
	defer file.Close()

	pcm, wf, err := pcmfile.DecodeWAV(file)
	if err != nil {
		return nil, f, err
	}
	return io.NopCloser(bytes.NewReader(pcm)), wf, nil
}

// recorder is the output device: raw PCM goes straight to the file, WAV is
// encoded on close.
type recorder struct {
	output *pcmfile.Output
	file   *os.File
	wav    *bytes.Buffer
	format audio.Format
}

func newRecorder(path string, f audio.Format) (*recorder, error) {
	rec := &recorder{format: f}
	var w io.Writer = io.Discard
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output: %w", err)
		}
		rec.file = file
		w = file
		if strings.EqualFold(filepath.Ext(path), ".wav") {
			rec.wav = &bytes.Buffer{}
			w = rec.wav
		}
	}
	rec.output = pcmfile.NewOutput(w, f, pcmfile.WithSkipSilence(), pcmfile.WithOutputLogger(slog.Default()))
	return rec, nil
}

func (r *recorder) close() error {
	if r.file == nil {
		return nil
	}
	var err error
	if r.wav != nil {
		err = pcmfile.EncodeWAV(r.file, r.format, r.wav.Bytes())
	}
	return errors.Join(err, r.file.Close())
}

func printEvent(w io.Writer, evt events.ServerEvent) {
	switch e := evt.(type) {
	case *events.InputAudioTranscriptionCompletedEvent:
		printLine(w, userStyle, "user", strings.TrimSpace(e.Transcript))
	case *events.ResponseAudioTranscriptDoneEvent:
		printLine(w, assistantStyle, "assistant", e.Transcript)
	case *events.ResponseTextDoneEvent:
		printLine(w, assistantStyle, "assistant", e.Text)
	case *events.ResponseFunctionCallArgumentsDoneEvent:
		printInfo(w, "tool call %s(%s)", e.Name, e.Arguments)
	case *events.SpeechStartedEvent:
		printInfo(w, "… speech started at %dms", e.AudioStartMs)
	case *events.ResponseDoneEvent:
		if e.Response.Usage != nil {
			printInfo(w, "response %s %s, %d tokens", e.Response.ID, e.Response.Status, e.Response.Usage.TotalTokens)
		}
	case *events.ErrorEvent:
		printError(w, "%v", e)
	case *events.ConnectionClosedEvent:
		if e.Err != nil {
			printError(w, "connection closed: %v", e.Err)
		}
	}
}
