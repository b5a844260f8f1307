package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/broadcast"
)

const (
	sendBufferSize = 16
	readLimit      = 512
)

var errBufferFull = errors.New("ws: send buffer full")

// Session is one push-only realtime client. It satisfies broadcast.Subscriber.
type Session struct {
	id           string
	ws           *websocket.Conn
	send         chan []byte
	closed       chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
}

func newSession(id string, conn *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Session {
	return &Session{
		id:           id,
		ws:           conn,
		send:         make(chan []byte, sendBufferSize),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Deliver enqueues payload without blocking. A slow client whose buffer is
// full is treated as gone.
func (s *Session) Deliver(payload []byte) error {
	select {
	case <-s.closed:
		return broadcast.ErrClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	case <-s.closed:
		return broadcast.ErrClosed
	default:
		s.Close()
		return errBufferFull
	}
}

// Close stops both pumps.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.ws.Close()
	})
}

// readPump only services control frames; data frames from clients are ignored.
func (s *Session) readPump() {
	defer s.Close()
	s.ws.SetReadLimit(readLimit)
	_ = s.ws.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			s.logger.Debug("realtime session read closed", zap.String("session_id", s.id), zap.Error(err))
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-s.closed:
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("realtime session write failed", zap.String("session_id", s.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.ws.WriteMessage(messageType, data)
}
