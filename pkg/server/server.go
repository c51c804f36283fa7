// Package server exposes detectors to browsers over WebSocket.
//
// Each connection gets its own detector. Binary frames carry little-endian
// float32 samples at 16 kHz; text frames carry {"command": "start"},
// {"command": "stop"} or {"command": "process", "data": [...]}. The server
// answers with LOADED, PRE_TRIGGER, DETECTED, STATUS and ERROR messages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/trace"
	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// Path is the WebSocket endpoint path.
	Path string

	// AuthToken is the bearer token for authentication.
	// If empty, authentication is disabled.
	AuthToken string

	// MaxSessionsPerIP limits sessions per IP address.
	// 0 means no limit.
	MaxSessionsPerIP int

	// ChunkBuffer is the number of audio chunks queued per session
	// before chunks are dropped.
	ChunkBuffer int

	// Detector configures every session's detector.
	Detector wakeword.Config

	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig(detector wakeword.Config) *Config {
	return &Config{
		Addr:             ":8080",
		Path:             "/ws",
		MaxSessionsPerIP: 10,
		ChunkBuffer:      16,
		Detector:         detector,
		ReadBufferSize:   32 * 1024,
		WriteBufferSize:  4096,
	}
}

// SessionHandler observes session lifecycle.
type SessionHandler interface {
	// OnSessionCreated is called before the session starts listening, so
	// subscribers on session.Bus() see its first status event. It must not
	// block; ctx is cancelled when the session closes.
	OnSessionCreated(ctx context.Context, session *Session)
	// OnSessionError is called when a session could not be created.
	OnSessionError(ctx context.Context, sessionID string, err error)
}

// NoOpSessionHandler ignores every callback.
type NoOpSessionHandler struct{}

func (NoOpSessionHandler) OnSessionCreated(context.Context, *Session)     {}
func (NoOpSessionHandler) OnSessionError(context.Context, string, error) {}

// Server is the wake-word WebSocket server.
type Server struct {
	config  *Config
	engine  inference.Engine
	handler SessionHandler
	logger  zerolog.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	ipSessions   map[string]int
	ipSessionsMu sync.Mutex

	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server loading one model per session through engine.
func New(config *Config, engine inference.Engine, handler SessionHandler) *Server {
	if handler == nil {
		handler = NoOpSessionHandler{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     config,
		engine:     engine,
		handler:    handler,
		logger:     log.With().Str("component", "server").Logger(),
		sessions:   make(map[string]*Session),
		ipSessions: make(map[string]int),
		mux:        http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.mux }

// RegisterHandler registers an extra HTTP handler. Must be called before
// Start.
func (s *Server) RegisterHandler(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Start listens in the background. It returns an error if the listener
// fails immediately.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.config.Addr).Str("path", s.config.Path).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop closes every session and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.sessionsMu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessionsMu.Unlock()

	for _, session := range sessions {
		session.Close()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.SessionCount())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.AuthToken != "" {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token != s.config.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	clientIP := getClientIP(r)
	if s.config.MaxSessionsPerIP > 0 {
		s.ipSessionsMu.Lock()
		count := s.ipSessions[clientIP]
		s.ipSessionsMu.Unlock()

		if count >= s.config.MaxSessionsPerIP {
			http.Error(w, "Too many sessions from this IP", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	detector, err := wakeword.NewDetector(s.config.Detector, s.engine)
	if err != nil {
		s.logger.Error().Err(err).Str("model", s.config.Detector.ModelPath).Msg("failed to load model")
		s.handler.OnSessionError(s.ctx, "", err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(Message{Command: CommandError, Error: err.Error(), Fatal: true})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "model load failed"))
		conn.Close()
		return
	}

	session := newSession(s.ctx, conn, detector, s.config.ChunkBuffer)
	session.onClose = func(sess *Session) {
		s.unregisterSession(sess, clientIP)
	}
	s.registerSession(session, clientIP)

	_, span := trace.InstrumentSession(session.Context(), session.ID)
	defer span.End()

	s.handler.OnSessionCreated(session.Context(), session)
	session.start()
	session.serve()
}

func (s *Server) registerSession(session *Session, clientIP string) {
	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	s.ipSessionsMu.Lock()
	s.ipSessions[clientIP]++
	s.ipSessionsMu.Unlock()

	s.logger.Info().Str("session_id", session.ID).Str("client_ip", clientIP).Msg("session registered")
}

func (s *Server) unregisterSession(session *Session, clientIP string) {
	s.sessionsMu.Lock()
	delete(s.sessions, session.ID)
	s.sessionsMu.Unlock()

	s.ipSessionsMu.Lock()
	s.ipSessions[clientIP]--
	if s.ipSessions[clientIP] <= 0 {
		delete(s.ipSessions, clientIP)
	}
	s.ipSessionsMu.Unlock()

	s.logger.Info().Str("session_id", session.ID).Msg("session unregistered")
}

// GetSession returns a session by ID.
func (s *Server) GetSession(sessionID string) *Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[sessionID]
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
