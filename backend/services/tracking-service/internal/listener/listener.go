// Package listener ingests positions from devices connected over raw TCP.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"trackhub/backend/libs/framing"
	"trackhub/backend/libs/tcpserver"
	"trackhub/backend/services/tracking-service/internal/broadcast"
	"trackhub/backend/services/tracking-service/internal/decoder"
	"trackhub/backend/services/tracking-service/internal/models"
)

var (
	// ErrNoGPSData marks frames without an identifier or coordinates.
	ErrNoGPSData = errors.New("listener: no gps data")
	// ErrOutOfRange marks frames whose coordinates are outside WGS84 bounds.
	ErrOutOfRange = errors.New("listener: coordinates out of range")
)

// Store is the slice of the position store the listener writes through.
type Store interface {
	FindOrCreateDevice(ctx context.Context, imei, name string) (*models.Device, bool, error)
	AppendPosition(ctx context.Context, p *models.Position) error
}

// Option customizes Listener.
type Option func(*Listener)

// WithPublisher broadcasts every stored position.
func WithPublisher(p broadcast.Publisher) Option {
	return func(l *Listener) {
		l.publisher = p
	}
}

// WithClock overrides the ingestion clock.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// Listener serves device connections. It implements tcpserver.Handler.
type Listener struct {
	decoder   decoder.Decoder
	store     Store
	publisher broadcast.Publisher
	framing   framing.Config
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a listener.
func New(dec decoder.Decoder, store Store, framingCfg framing.Config, logger *zap.Logger, opts ...Option) *Listener {
	l := &Listener{
		decoder: dec,
		store:   store,
		framing: framingCfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ServeConn processes frames sequentially until the device disconnects.
// Failures of individual frames are logged and never end the connection.
func (l *Listener) ServeConn(ctx context.Context, conn *tcpserver.Conn) {
	logger := l.logger.With(
		zap.String("conn_id", conn.ID),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	logger.Info("device connected")

	reader := framing.NewReader(conn, l.framing)
	var frames, stored int
	for {
		frame, err := reader.Next()
		if err != nil {
			logClose(logger, err, frames, stored)
			return
		}
		if l.framing.Blank(frame) {
			continue
		}
		frames++

		pos, err := l.HandleFrame(ctx, frame)
		switch {
		case err == nil:
			stored++
			logger.Debug("position stored", zap.Int64("position_id", pos.ID), zap.Int64("device_id", pos.DeviceID))
		case errors.Is(err, ErrNoGPSData), errors.Is(err, ErrOutOfRange):
			logger.Debug("frame dropped", zap.Error(err), zap.Int("bytes", len(frame)))
		default:
			logger.Warn("failed to handle frame", zap.Error(err), zap.Int("bytes", len(frame)))
		}
	}
}

// HandleFrame decodes one frame and stores the resulting position,
// registering the device on first sight.
func (l *Listener) HandleFrame(ctx context.Context, frame []byte) (*models.Position, error) {
	facts := l.decoder.Decode(frame)
	if !facts.Usable() {
		return nil, ErrNoGPSData
	}
	if !models.ValidCoordinates(facts.Latitude, facts.Longitude) {
		return nil, fmt.Errorf("%w: %f,%f", ErrOutOfRange, facts.Latitude, facts.Longitude)
	}

	device, created, err := l.store.FindOrCreateDevice(ctx, facts.DeviceID, models.DefaultDeviceName(facts.DeviceID))
	if err != nil {
		return nil, fmt.Errorf("resolve device %s: %w", facts.DeviceID, err)
	}
	if created {
		l.logger.Info("registered new device", zap.String("imei", device.IMEI), zap.Int64("device_id", device.ID))
	}

	raw, err := json.Marshal(rawSnapshot{Text: facts.RawText, Protocol: facts.Protocol})
	if err != nil {
		return nil, fmt.Errorf("encode raw snapshot: %w", err)
	}
	pos := &models.Position{
		DeviceID:  device.ID,
		Latitude:  facts.Latitude,
		Longitude: facts.Longitude,
		Speed:     facts.SpeedOrZero(),
		Course:    facts.CourseOrZero(),
		Timestamp: l.now(),
		Raw:       raw,
	}
	if err := l.store.AppendPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("append position for %s: %w", facts.DeviceID, err)
	}

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, broadcast.NewEvent(device, pos)); err != nil {
			l.logger.Warn("failed to broadcast position", zap.Int64("position_id", pos.ID), zap.Error(err))
		}
	}
	return pos, nil
}

type rawSnapshot struct {
	Text     string `json:"text"`
	Protocol string `json:"protocol,omitempty"`
}

func logClose(logger *zap.Logger, err error, frames, stored int) {
	fields := []zap.Field{zap.Int("frames", frames), zap.Int("stored", stored)}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Info("device disconnected", fields...)
	case errors.Is(err, framing.ErrIdleTimeout):
		logger.Info("closing idle device connection", fields...)
	default:
		logger.Warn("device connection read failed", append(fields, zap.Error(err))...)
	}
}
