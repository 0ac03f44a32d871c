package websocket

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"brain2-extractor/application/services"
	"brain2-extractor/pkg/errors"
)

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	MaxConnections  int
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		MaxConnections: 10000,
	}
}

// Server upgrades session stream requests and serves them until the
// session ends
type Server struct {
	sessions     *services.SessionManager
	upgrader     websocket.Upgrader
	errorHandler *errors.ErrorHandler
	maxConns     int64
	conns        atomic.Int64
	logger       *zap.Logger
}

// NewServer creates a new WebSocket server
func NewServer(sessions *services.SessionManager, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		errorHandler: errors.NewErrorHandler(logger, false),
		maxConns:     int64(config.MaxConnections),
		logger:       logger,
	}
}

// HandleSession handles GET /sessions/{sessionID}/ws. Unknown or finished
// sessions are rejected before the upgrade.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if s.maxConns > 0 && s.conns.Load() >= s.maxConns {
		s.errorHandler.HandleStatus(w, r, http.StatusTooManyRequests, "connection limit exceeded")
		return
	}

	stream, cancel, err := s.sessions.Subscribe(r.Context(), sessionID)
	if err != nil {
		s.errorHandler.Handle(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr))
		return
	}

	s.conns.Add(1)
	defer s.conns.Add(-1)

	client := NewClient(sessionID, conn, stream, cancel, s.logger)
	s.logger.Info("WebSocket subscriber connected",
		zap.String("sessionID", sessionID),
		zap.String("remoteAddr", r.RemoteAddr))

	client.Run()
}

// Connections returns the number of open connections
func (s *Server) Connections() int {
	return int(s.conns.Load())
}
