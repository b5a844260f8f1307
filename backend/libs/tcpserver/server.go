package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	proxyproto "github.com/pires/go-proxyproto"
	"go.uber.org/zap"
)

const proxyHeaderTimeout = 5 * time.Second

// Handler serves a single accepted connection. The server closes the
// connection once ServeConn returns.
type Handler interface {
	ServeConn(ctx context.Context, conn *Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *Conn)

// ServeConn calls f.
func (f HandlerFunc) ServeConn(ctx context.Context, conn *Conn) {
	f(ctx, conn)
}

// Conn is an accepted connection tagged with a unique id.
type Conn struct {
	net.Conn
	ID string
}

// Option customizes Server.
type Option func(*Server)

// WithProxyProtocol makes the listener accept PROXY protocol v1/v2 headers so
// that RemoteAddr reports the device address behind a load balancer.
func WithProxyProtocol(enabled bool) Option {
	return func(s *Server) {
		s.proxyProtocol = enabled
	}
}

// Server accepts TCP connections and runs one goroutine per connection.
type Server struct {
	addr          string
	handler       Handler
	logger        *zap.Logger
	proxyProtocol bool

	mu    sync.Mutex
	ln    net.Listener
	conns map[string]*Conn
	wg    sync.WaitGroup
	ready chan struct{}
}

// New builds a server for addr.
func New(addr string, handler Handler, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		logger:  logger,
		conns:   make(map[string]*Conn),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run listens until ctx is cancelled, then closes the listener and every
// active connection and waits for handlers to return.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %s: %w", s.addr, err)
	}
	if s.proxyProtocol {
		ln = &proxyproto.Listener{Listener: ln, ReadHeaderTimeout: proxyHeaderTimeout}
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("starting tcp listener",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("proxy_protocol", s.proxyProtocol),
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept timeout", zap.Error(err))
				continue
			}
			_ = ln.Close()
			s.shutdown()
			return fmt.Errorf("tcpserver: accept: %w", err)
		}
		s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, raw net.Conn) {
	conn := &Conn{Conn: raw, ID: uuid.NewString()}

	s.mu.Lock()
	s.conns[conn.ID] = conn
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(conn)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("connection handler panicked",
					zap.String("conn_id", conn.ID),
					zap.Any("panic", r),
				)
			}
		}()
		s.handler.ServeConn(ctx, conn)
	}()
}

func (s *Server) release(conn *Conn) {
	s.mu.Lock()
	delete(s.conns, conn.ID)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
