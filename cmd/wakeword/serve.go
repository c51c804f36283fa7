package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/config"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/notify"
	"github.com/realtime-ai/wakeword/pkg/server"
)

// mqttSessionHandler forwards every session's detections to one broker.
type mqttSessionHandler struct {
	publisher *notify.MQTTPublisher
}

func (h *mqttSessionHandler) OnSessionCreated(ctx context.Context, session *server.Session) {
	h.publisher.Start(ctx, session.Bus())
}

func (h *mqttSessionHandler) OnSessionError(_ context.Context, sessionID string, err error) {
	log.Warn().Err(err).Str("session_id", sessionID).Msg("session failed")
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.ServerAddr, "listen address")
	modelPath := fs.String("model", cfg.ModelPath, "ONNX model path")
	token := fs.String("token", os.Getenv("WAKEWORD_AUTH_TOKEN"), "bearer token required from clients")
	_ = fs.Parse(args)

	cfg.ModelPath = *modelPath
	detCfg, err := cfg.Detector()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer setupTracing(ctx, cfg)()
	defer inference.ShutdownRuntime()

	var handler server.SessionHandler = server.NoOpSessionHandler{}
	if cfg.MQTTBroker != "" {
		mcfg := mqttConfig(cfg)
		client, err := notify.Connect(mcfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		handler = &mqttSessionHandler{publisher: notify.NewMQTTPublisher(client, mcfg)}
	}

	srvCfg := server.DefaultConfig(detCfg)
	srvCfg.Addr = *addr
	srvCfg.AuthToken = *token
	srvCfg.ChunkBuffer = cfg.CaptureBuffer

	srv := server.New(srvCfg, newEngine(cfg), handler)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
