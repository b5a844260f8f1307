package clients

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TargetConfig controls a legacy TCP destination.
type TargetConfig struct {
	Addr         string
	QueueSize    int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DialFunc opens a connection to a target.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TCPTarget copies frames to one downstream platform over a persistent
// connection. Frames are queued without blocking the caller and written by
// Run. The connection is opened on first use and re-established once per
// failed write.
type TCPTarget struct {
	cfg    TargetConfig
	dial   DialFunc
	logger *zap.Logger

	mu     sync.Mutex
	queue  chan []byte
	closed bool

	conn    net.Conn
	sent    atomic.Int64
	dropped atomic.Int64
}

// NewTCPTarget builds a target. dial may be nil.
func NewTCPTarget(cfg TargetConfig, dial DialFunc, logger *zap.Logger) *TCPTarget {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	return &TCPTarget{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With(zap.String("target", cfg.Addr)),
		queue:  make(chan []byte, cfg.QueueSize),
	}
}

// Addr returns the destination address.
func (t *TCPTarget) Addr() string {
	return t.cfg.Addr
}

// Enqueue hands a frame to the writer. It reports false when the queue is
// full or closed; the frame is then dropped.
func (t *TCPTarget) Enqueue(frame []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		t.dropped.Add(1)
		return false
	}
	select {
	case t.queue <- frame:
		return true
	default:
		t.dropped.Add(1)
		t.logger.Warn("target queue full, dropping frame", zap.Int("bytes", len(frame)))
		return false
	}
}

// Close stops accepting frames. Run drains what is queued and returns.
func (t *TCPTarget) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
}

// Run writes queued frames until Close, then closes the connection.
func (t *TCPTarget) Run() error {
	defer t.disconnect()
	for frame := range t.queue {
		if t.deliver(frame) {
			t.sent.Add(1)
		} else {
			t.dropped.Add(1)
		}
	}
	return nil
}

// Stats returns frames written and dropped so far.
func (t *TCPTarget) Stats() (sent, dropped int64) {
	return t.sent.Load(), t.dropped.Load()
}

func (t *TCPTarget) deliver(frame []byte) bool {
	if t.conn == nil {
		if err := t.connect(); err != nil {
			t.logger.Warn("target unreachable, dropping frame", zap.Error(err))
			return false
		}
	}
	err := t.write(frame)
	if err == nil {
		return true
	}

	t.logger.Warn("target write failed, reconnecting", zap.Error(err))
	t.disconnect()
	if err := t.connect(); err != nil {
		t.logger.Warn("target reconnect failed, dropping frame", zap.Error(err))
		return false
	}
	if err := t.write(frame); err != nil {
		t.logger.Warn("target retry failed, dropping frame", zap.Error(err))
		t.disconnect()
		return false
	}
	return true
}

func (t *TCPTarget) connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.DialTimeout)
	defer cancel()
	conn, err := t.dial(ctx, "tcp", t.cfg.Addr)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *TCPTarget) write(frame []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := t.conn.Write(frame)
	return err
}

func (t *TCPTarget) disconnect() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
