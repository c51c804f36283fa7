package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/audio"
	"github.com/realtime-ai/wakeword/pkg/capture"
	"github.com/realtime-ai/wakeword/pkg/events"
	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

const writeWait = 5 * time.Second

// Session is one websocket client with its own detector.
type Session struct {
	ID string

	conn     *websocket.Conn
	detector *wakeword.Detector
	bus      *events.EventBus
	eventCh  chan events.Event
	sendCh   chan Message
	chunkBuf int
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	source  *capture.ChanSource
	wg      sync.WaitGroup
	closed  bool
	onClose func(*Session)
}

func newSession(ctx context.Context, conn *websocket.Conn, detector *wakeword.Detector, chunkBuf int) *Session {
	id := "sess_" + uuid.New().String()[:12]
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:       id,
		conn:     conn,
		detector: detector,
		bus:      events.NewEventBus(),
		eventCh:  make(chan events.Event, 32),
		sendCh:   make(chan Message, 64),
		chunkBuf: chunkBuf,
		logger:   log.With().Str("component", "server").Str("session_id", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, t := range []events.EventType{
		events.EventWakeWordDetected,
		events.EventWakeWordArmed,
		events.EventStatusChanged,
		events.EventInferenceError,
		events.EventError,
	} {
		s.bus.Subscribe(t, s.eventCh)
	}
	detector.SetBus(s.bus)
	return s
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Bus carries the session detector's events.
func (s *Session) Bus() events.Bus { return s.bus }

// Detector returns the session detector.
func (s *Session) Detector() *wakeword.Detector { return s.detector }

// start launches the writer and event forwarder, announces the model and
// begins listening.
func (s *Session) start() {
	s.bus.Start(s.ctx)

	s.wg.Add(2)
	go s.writeLoop()
	go s.eventLoop()

	s.Send(Message{Command: CommandLoaded, SessionID: s.ID, InputNames: s.detector.InputNames()})
	s.startListening()
}

// Send queues msg for the client. It drops msg if the queue is full.
func (s *Session) Send(msg Message) {
	select {
	case <-s.ctx.Done():
	case s.sendCh <- msg:
	default:
		s.logger.Warn().Str("command", msg.Command).Msg("send queue full, dropping message")
	}
}

// serve reads client frames until the connection fails or the session
// closes.
func (s *Session) serve() {
	defer s.Close()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.push(audio.F32LEToFloat32(data))
		case websocket.TextMessage:
			cmd, err := ParseClientCommand(data)
			if err != nil {
				s.Send(Message{Command: CommandError, Error: err.Error()})
				continue
			}
			s.handleCommand(cmd)
		}
	}
}

func (s *Session) handleCommand(cmd ClientCommand) {
	switch cmd.Command {
	case CommandStart:
		s.startListening()
	case CommandStop:
		s.stopListening()
	case CommandProcess:
		s.push(cmd.Data)
	}
}

// push hands a chunk to the detector. Chunks received while paused are
// discarded.
func (s *Session) push(chunk []float32) {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()

	if src == nil || len(chunk) == 0 {
		return
	}
	src.Push(chunk)
}

func (s *Session) startListening() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.detector.Listening() {
		return
	}
	// A start failure reaches the client as a fatal ERROR through the bus.
	src := capture.NewChanSource(s.chunkBuf)
	if err := s.detector.Start(s.ctx, src); err != nil {
		s.logger.Error().Err(err).Msg("failed to start detector")
		return
	}
	s.source = src
}

func (s *Session) stopListening() {
	s.mu.Lock()
	s.source = nil
	s.mu.Unlock()

	if err := s.detector.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop detector")
	}
}

// eventLoop turns detector events into client messages.
func (s *Session) eventLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt := <-s.eventCh:
			if msg, ok := messageFor(evt); ok {
				s.Send(msg)
			}
		}
	}
}

// writeLoop is the only writer on the connection.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write message")
				s.cancel()
				s.conn.Close()
				return
			}
		}
	}
}

// Close stops the detector, releases the model and closes the connection.
// It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.source = nil
	onClose := s.onClose
	s.mu.Unlock()

	if err := s.detector.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close detector")
	}
	s.cancel()
	s.wg.Wait()
	s.bus.Stop()
	s.conn.Close()

	if onClose != nil {
		onClose(s)
	}
	s.logger.Info().Msg("session closed")
	return nil
}
