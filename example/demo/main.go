package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/codewandler/realtime-go"
	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/events"
	"github.com/codewandler/realtime-go/tool"
	"github.com/gordonklaus/portaudio"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		phone       = false
		debug       = false
		resampler   = "soxr"
		srMic       = 48_000
		srSpeaker   = 48_000
		instruction = "You are a helpcenter agent and help the user."
	)

	flag.StringVar(&instruction, "instruction", instruction, "instruction to send to the agent.")
	flag.IntVar(&srMic, "mic-sample-rate", srMic, "microphone sample rate")
	flag.IntVar(&srSpeaker, "speaker-sample-rate", srSpeaker, "speaker sample rate")
	flag.BoolVar(&phone, "phone", false, "emulate a phone line: 8khz devices, g711 output.")
	flag.StringVar(&resampler, "resampler", resampler, "resampler: soxr or beep")
	flag.BoolVar(&debug, "debug", false, "enable debug logs")
	flag.Parse()

	if phone {
		srMic = 8_000
		srSpeaker = 8_000
	}

	slog.SetLogLoggerLevel(slog.LevelError)
	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	must(portaudio.Initialize())
	defer portaudio.Terminate()

	converter, err := audio.ParseConverterKind(resampler)
	must(err)

	sink, err := audio.NewSink(NewSpeaker(srSpeaker),
		audio.WithSinkConverter(converter),
		audio.WithSinkLogger(slog.Default()),
	)
	must(err)
	must(sink.Start())
	defer sink.Stop()

	client := realtime.New(
		realtime.WithDefaultLogger(),
		realtime.WithPlayback(sink),
		realtime.WithToolHandler(func(name string, args map[string]any) (any, error) {
			switch name {
			case "get_time":
				return time.Now().Format(time.RFC3339), nil
			case "conversation_end":
				cancel()
				return "OK", nil
			}
			return nil, fmt.Errorf("unknown tool: %s", name)
		}),
		realtime.WithSubscriber(realtime.SubscriberFunc(func(e events.ServerEvent) {
			switch x := e.(type) {
			case *events.ResponseAudioTranscriptDoneEvent:
				println("agent>", x.Transcript)
			case *events.InputAudioTranscriptionCompletedEvent:
				println("user>", x.Transcript)
			case *events.ErrorEvent:
				slog.Error("error", slog.Any("error", x))
			}
		})),
	)
	defer client.Close()

	cfg := events.SessionUpdate{
		Instructions:            events.Ptr(instruction),
		TurnDetection:           events.SemanticVAD(events.EagernessAuto),
		InputAudioTranscription: &events.Transcription{Model: "whisper-1"},
		Tools: []tool.Tool{
			tool.Function("conversation_end", "End the conversation"),
			tool.Function("get_time", "Get current time"),
		},
	}
	if phone {
		cfg.OutputAudioFormat = events.Ptr(events.AudioFormatG711ULaw)
	}
	must(client.Connect(ctx, cfg))

	capture := audio.NewAccumulator(audio.WithConverter(converter))
	_, err = client.StartCapture(ctx, NewMic(srMic), audio.WithAccumulator(capture))
	must(err)

	must(client.CreateResponse(nil))

	select {
	case <-ctx.Done():
	case <-client.Done():
	}
}
