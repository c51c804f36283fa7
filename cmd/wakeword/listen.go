package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/capture"
	"github.com/realtime-ai/wakeword/pkg/config"
	"github.com/realtime-ai/wakeword/pkg/events"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/notify"
	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

func runListen(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	modelPath := fs.String("model", cfg.ModelPath, "ONNX model path")
	preset := fs.String("preset", cfg.Preset, "trigger preset: center or sum")
	wavPath := fs.String("wav", "", "replay a WAV file instead of the microphone")
	paced := fs.Bool("paced", true, "replay -wav in real time")
	_ = fs.Parse(args)

	cfg.ModelPath = *modelPath
	if flagSet(fs, "preset") {
		if err := cfg.ApplyPreset(*preset); err != nil {
			return err
		}
	}
	detCfg, err := cfg.Detector()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer setupTracing(ctx, cfg)()
	defer inference.ShutdownRuntime()

	// The bus outlives the detector so its final status reaches subscribers.
	bus := events.NewEventBus()
	if err := bus.Start(context.Background()); err != nil {
		return err
	}
	defer bus.Stop()

	det, err := wakeword.NewDetector(detCfg, newEngine(cfg))
	if err != nil {
		return err
	}
	defer det.Close()
	det.SetBus(bus)

	if cfg.MQTTBroker != "" {
		mcfg := mqttConfig(cfg)
		client, err := notify.Connect(mcfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub := notify.NewMQTTPublisher(client, mcfg)
		log.Info().Str("topic", pub.Topic()).Msg("publishing detections to mqtt")
		pub.Start(ctx, bus)
	}

	var src capture.Source
	if *wavPath != "" {
		src, err = capture.NewWAVSource(*wavPath, cfg.ChunkSize, *paced)
		if err != nil {
			return err
		}
	} else {
		mic := capture.DefaultMicrophoneConfig()
		mic.PeriodFrames = cfg.ChunkSize
		mic.Buffer = cfg.CaptureBuffer
		src = capture.NewMicrophone(mic)
	}

	ch := make(chan events.Event, 16)
	for _, t := range []events.EventType{
		events.EventWakeWordDetected,
		events.EventWakeWordArmed,
		events.EventStatusChanged,
		events.EventError,
	} {
		bus.Subscribe(t, ch)
	}

	if err := det.Start(ctx, src); err != nil {
		return err
	}
	log.Info().Str("detector_id", det.ID()).Str("model", detCfg.ModelPath).Msg("listening, press Ctrl-C to stop")

	for {
		select {
		case <-ctx.Done():
			return det.Stop()
		case evt := <-ch:
			switch payload := evt.Payload.(type) {
			case events.Detection:
				fmt.Printf("wake word detected (confidence %.2f)\n", payload.Confidence)
			case events.Armed:
				log.Debug().Float64("smoothed", payload.Smoothed).Uint64("cycle", payload.Cycle).Msg("armed")
			case events.StatusChange:
				log.Info().Str("status", string(payload.Status)).Str("reason", payload.Reason).Msg("status changed")
				if payload.Status == events.StatusPaused && payload.Reason == "capture ended" {
					return nil
				}
			case events.CycleError:
				return payload.Err
			}
		}
	}
}
