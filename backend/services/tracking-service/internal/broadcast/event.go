package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

// Event is the JSON document pushed to realtime subscribers.
type Event struct {
	DeviceID  int64           `json:"device_id"`
	IMEI      string          `json:"imei"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Speed     float64         `json:"speed"`
	Course    float64         `json:"course"`
	Timestamp time.Time       `json:"timestamp"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// NewEvent builds the event for a freshly stored position.
func NewEvent(device *models.Device, p *models.Position) Event {
	return Event{
		DeviceID:  p.DeviceID,
		IMEI:      device.IMEI,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Speed:     p.Speed,
		Course:    p.Course,
		Timestamp: p.Timestamp,
		Raw:       p.Raw,
	}
}

// Publisher delivers position events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish never stops at the first failing publisher.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
