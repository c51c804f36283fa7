package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/audio"
	"github.com/realtime-ai/wakeword/pkg/capture"
	"github.com/realtime-ai/wakeword/pkg/config"
	"github.com/realtime-ai/wakeword/pkg/eval"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

func runEval(cfg *config.Config, args []string) error {
	rc := eval.DefaultRunConfig()

	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	modelPath := fs.String("model", cfg.ModelPath, "ONNX model path")
	audioPath := fs.String("audio", "", "16-bit PCM or float WAV file (required)")
	truthPath := fs.String("truth", "", "ground truth JSON: [{\"word\":...,\"start_ms\":...}]")
	target := fs.String("target", "seven", "ground truth label of the wake word")
	tolerance := fs.Duration("tolerance", 600*time.Millisecond, "max distance between detection and onset")
	preset := fs.String("preset", config.PresetSum, "trigger preset: center or sum (default sum unless WAKEWORD_PRESET or the config file names one)")
	fs.IntVar(&rc.ChunkMs, "chunk-ms", rc.ChunkMs, "chunk duration in milliseconds")
	fs.IntVar(&rc.WarmupMs, "warmup-ms", rc.WarmupMs, "audio absorbed before the first cycle")
	fs.Float64Var(&rc.OffsetMs, "offset", rc.OffsetMs, "ms subtracted from a detection to estimate onset")
	_ = fs.Parse(args)

	if *audioPath == "" {
		fs.Usage()
		return fmt.Errorf("-audio is required")
	}

	cfg.ModelPath = *modelPath
	if flagSet(fs, "preset") || !cfg.PresetExplicit() {
		if err := cfg.ApplyPreset(*preset); err != nil {
			return err
		}
	}
	detCfg, err := cfg.Detector()
	if err != nil {
		return err
	}

	var truth []eval.GroundTruth
	if *truthPath != "" {
		truth, err = eval.LoadGroundTruth(*truthPath)
		if err != nil {
			return err
		}
	}

	wav, err := audio.ReadWAVFile(*audioPath)
	if err != nil {
		return err
	}
	samples, err := audio.Resample(wav.Samples, wav.SampleRate, capture.SampleRate)
	if err != nil {
		return err
	}
	log.Info().
		Str("audio", *audioPath).
		Int("sample_rate", wav.SampleRate).
		Int("duration_ms", wav.DurationMs()).
		Msg("audio loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer setupTracing(ctx, cfg)()
	defer inference.ShutdownRuntime()

	det, err := wakeword.NewDetector(detCfg, newEngine(cfg))
	if err != nil {
		return err
	}
	defer det.Close()

	rc.SampleRate = capture.SampleRate
	report, err := eval.Run(ctx, det, samples, rc)
	if err != nil {
		return err
	}

	var metrics *eval.Metrics
	if truth != nil {
		m := eval.Score(report.StartTimes(), truth, *target, float64(tolerance.Milliseconds()))
		metrics = &m
	}
	return eval.WriteReport(os.Stdout, report, metrics)
}
