package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/config"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/notify"
	"github.com/realtime-ai/wakeword/pkg/trace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	setupLogging(cfg)

	cmd := os.Args[1]
	switch cmd {
	case "listen":
		err = runListen(cfg, os.Args[2:])
	case "serve":
		err = runServe(cfg, os.Args[2:])
	case "eval":
		err = runEval(cfg, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: wakeword <listen|serve|eval> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  listen    Detect from the default microphone (or -wav file)")
	fmt.Fprintln(os.Stderr, "  serve     Run the websocket detection server")
	fmt.Fprintln(os.Stderr, "  eval      Stream a WAV file and score against ground truth")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment (also read from .env):")
	fmt.Fprintln(os.Stderr, "  WAKEWORD_MODEL_PATH   ONNX model path")
	fmt.Fprintln(os.Stderr, "  WAKEWORD_PRESET       center|sum")
	fmt.Fprintln(os.Stderr, "  WAKEWORD_CONFIG       optional YAML overlay")
	fmt.Fprintln(os.Stderr, "  ONNXRUNTIME_LIB       onnxruntime shared library")
	fmt.Fprintln(os.Stderr, "  MQTT_BROKER           publish detections, e.g. tcp://localhost:1883")
	fmt.Fprintln(os.Stderr, "  TRACE_EXPORTER        stdout|otlp|none")
	fmt.Fprintln(os.Stderr, "  LOG_LEVEL             debug|info|warn|error")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Run 'wakeword <command> -h' for command flags.")
}

func fatal(err error) {
	log.Error().Err(err).Msg("fatal")
	os.Exit(1)
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}

// setupTracing returns the shutdown hook. Tracing failures are logged and
// never stop the command.
func setupTracing(ctx context.Context, cfg *config.Config) func() {
	tc := trace.DefaultConfig()
	tc.ExporterType = cfg.TraceExporter
	if err := trace.Initialize(ctx, tc); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("trace shutdown failed")
		}
	}
}

func newEngine(cfg *config.Config) *inference.ONNXEngine {
	return inference.NewONNXEngine(cfg.ONNX())
}

func mqttConfig(cfg *config.Config) notify.MQTTConfig {
	return notify.MQTTConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		Topic:    cfg.MQTTTopic,
		DeviceID: cfg.DeviceID,
		QoS:      1,
		Buffer:   16,
	}
}

// flagSet reports whether name was given on the command line.
func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
