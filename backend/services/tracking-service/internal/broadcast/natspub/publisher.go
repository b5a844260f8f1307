// Package natspub emits stored positions to NATS for downstream consumers.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/broadcast"
)

// DefaultSubject prefixes per-device subjects, e.g. positions.359710048216253.
const DefaultSubject = "positions"

// Publisher is a broadcast.Publisher backed by a NATS connection.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials url and keeps reconnecting in the background.
func Connect(url, subject string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("tracking-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natspub: connect: %w", err)
	}
	return NewPublisher(conn, subject), nil
}

// NewPublisher wraps an established connection.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends the event on the per-device subject.
func (p *Publisher) Publish(_ context.Context, event broadcast.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("natspub: encode event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.subject, event.IMEI), payload); err != nil {
		return fmt.Errorf("natspub: publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// Subject returns the subject for a device.
func Subject(prefix, imei string) string {
	if imei == "" {
		return prefix
	}
	return prefix + "." + imei
}
