package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests into hub clients
type Server struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	pingPeriod time.Duration
	logger     *zap.Logger
}

// NewServer creates a new WebSocket server. checkOrigin nil accepts every
// origin.
func NewServer(hub *Hub, checkOrigin func(r *http.Request) bool, writeWait, pingPeriod time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		writeWait:  writeWait,
		pingPeriod: pingPeriod,
		logger:     logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(s.hub, conn, s.writeWait, s.pingPeriod, s.logger)
	client.Start()

	s.logger.Info("New WebSocket connection established",
		zap.String("connectionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}
