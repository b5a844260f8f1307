// Package relay duplicates device streams to the tracking-service ingest API
// and to legacy TCP platforms.
package relay

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trackhub/backend/libs/framing"
	"trackhub/backend/libs/tcpserver"
	"trackhub/backend/services/ingest-gateway/internal/clients"
)

// Forwarder delivers a frame to the primary destination.
type Forwarder interface {
	Enabled() bool
	Forward(ctx context.Context, frame []byte, sourceIP string) error
}

// Config controls per-connection forwarding.
type Config struct {
	Framing        framing.Config
	ForwardTimeout time.Duration
	MaxInFlight    int
	Targets        []string
	Target         clients.TargetConfig
	Dial           clients.DialFunc
}

// Handler serves gateway device connections. It implements tcpserver.Handler.
type Handler struct {
	cfg     Config
	primary Forwarder
	logger  *zap.Logger
}

// NewHandler builds a relay handler.
func NewHandler(cfg Config, primary Forwarder, logger *zap.Logger) *Handler {
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = 5 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	return &Handler{cfg: cfg, primary: primary, logger: logger}
}

type connStats struct {
	frames    int
	bytes     int
	forwarded atomic.Int64
	failed    atomic.Int64
	skipped   int
}

// ServeConn reads frames and fans each one out without ever waiting on a
// destination. Legacy targets receive every byte of the stream unchanged;
// frames holding only terminators are not posted to the primary. All goroutines started for the connection belong to one
// errgroup that is awaited before returning.
func (h *Handler) ServeConn(ctx context.Context, conn *tcpserver.Conn) {
	sourceIP := remoteIP(conn.RemoteAddr())
	logger := h.logger.With(zap.String("conn_id", conn.ID), zap.String("source_ip", sourceIP))
	logger.Info("tracker connected")

	targets := make([]*clients.TCPTarget, 0, len(h.cfg.Targets))
	for _, addr := range h.cfg.Targets {
		tc := h.cfg.Target
		tc.Addr = addr
		targets = append(targets, clients.NewTCPTarget(tc, h.cfg.Dial, logger))
	}

	var g errgroup.Group
	g.SetLimit(h.cfg.MaxInFlight + len(targets))
	for _, t := range targets {
		g.Go(t.Run)
	}

	// forwards outlive the device connection so in-flight frames still land
	forwardCtx := context.WithoutCancel(ctx)
	primary := h.primary != nil && h.primary.Enabled()
	if !primary {
		logger.Debug("primary destination disabled")
	}

	var stats connStats
	reader := framing.NewReader(conn, h.cfg.Framing)
	for {
		frame, err := reader.Next()
		if err != nil {
			logger.Debug("tracker stream ended", zap.Error(err))
			break
		}
		stats.frames++
		stats.bytes += len(frame)

		if primary && !h.cfg.Framing.Blank(frame) {
			started := g.TryGo(func() error {
				h.forward(forwardCtx, frame, sourceIP, logger, &stats)
				return nil
			})
			if !started {
				stats.skipped++
				logger.Warn("too many in-flight forwards, dropping frame for primary", zap.Int("bytes", len(frame)))
			}
		}
		for _, t := range targets {
			t.Enqueue(frame)
		}
	}

	for _, t := range targets {
		t.Close()
	}
	_ = g.Wait()

	fields := []zap.Field{
		zap.Int("frames", stats.frames),
		zap.Int("bytes", stats.bytes),
		zap.Int64("primary_ok", stats.forwarded.Load()),
		zap.Int64("primary_failed", stats.failed.Load()),
		zap.Int("primary_skipped", stats.skipped),
	}
	for _, t := range targets {
		sent, dropped := t.Stats()
		fields = append(fields, zap.Dict(t.Addr(), zap.Int64("sent", sent), zap.Int64("dropped", dropped)))
	}
	logger.Info("tracker disconnected", fields...)
}

func (h *Handler) forward(ctx context.Context, frame []byte, sourceIP string, logger *zap.Logger, stats *connStats) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ForwardTimeout)
	defer cancel()
	if err := h.primary.Forward(ctx, frame, sourceIP); err != nil {
		stats.failed.Add(1)
		logger.Warn("primary forward failed", zap.Error(err))
		return
	}
	stats.forwarded.Add(1)
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
