package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/broadcast"
)

// Server upgrades HTTP requests into realtime position sessions.
type Server struct {
	hub          *broadcast.Hub
	manager      *Manager
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *broadcast.Hub, manager *Manager, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		hub:          hub,
		manager:      manager,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/positions endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := newSession("", conn, s.writeTimeout, s.pingInterval, s.logger)
	session.id = string(s.hub.Subscribe(session))
	s.manager.Add(session)
	s.logger.Info("realtime subscriber connected",
		zap.String("session_id", session.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	go session.writePump()
	go func() {
		session.readPump()
		s.hub.Unsubscribe(broadcast.Handle(session.id))
		s.manager.Remove(session.id)
		s.logger.Info("realtime subscriber disconnected", zap.String("session_id", session.id))
	}()
}
