package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/broadcast"
	"trackhub/backend/services/tracking-service/internal/decoder"
	"trackhub/backend/services/tracking-service/internal/models"
	"trackhub/backend/services/tracking-service/internal/repository"
)

// Ingest statuses and reasons reported back to forwarders.
const (
	StatusOK            = "ok"
	StatusIgnored       = "ignored"
	StatusUnknownDevice = "unknown_device"

	ReasonNoGPSData  = "no_gps_data"
	ReasonOutOfRange = "out_of_range"
)

// IngestInput is the body of POST /positions/ingest.
type IngestInput struct {
	RawHex   string `json:"raw_hex" validate:"required,hexadecimal"`
	SourceIP string `json:"source_ip,omitempty"`
}

// IngestResult is the terminal outcome of one ingest request.
type IngestResult struct {
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
	IMEI   string `json:"imei,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IngestService turns forwarded device frames into stored positions.
type IngestService struct {
	store     PositionStore
	decoder   decoder.Decoder
	publisher broadcast.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewIngestService returns service instance. publisher may be nil.
func NewIngestService(store PositionStore, dec decoder.Decoder, publisher broadcast.Publisher, logger *zap.Logger) *IngestService {
	return &IngestService{
		store:     store,
		decoder:   dec,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest decodes the hex payload and stores a position for a known device.
// Devices are never created on this path.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (IngestResult, error) {
	payload, err := hex.DecodeString(input.RawHex)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}

	facts := s.decoder.Decode(payload)
	if !facts.Usable() {
		return IngestResult{Status: StatusIgnored, Reason: ReasonNoGPSData}, nil
	}
	if !models.ValidCoordinates(facts.Latitude, facts.Longitude) {
		return IngestResult{Status: StatusIgnored, Reason: ReasonOutOfRange}, nil
	}

	device, err := s.store.FindDeviceByIMEI(ctx, facts.DeviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return IngestResult{Status: StatusUnknownDevice, IMEI: facts.DeviceID}, nil
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("lookup device %s: %w", facts.DeviceID, err)
	}

	raw, err := json.Marshal(ingestSnapshot{RawHex: input.RawHex, SourceIP: input.SourceIP, Text: facts.RawText})
	if err != nil {
		return IngestResult{}, fmt.Errorf("encode raw snapshot: %w", err)
	}
	pos := &models.Position{
		DeviceID:  device.ID,
		Latitude:  facts.Latitude,
		Longitude: facts.Longitude,
		Speed:     facts.SpeedOrZero(),
		Course:    facts.CourseOrZero(),
		Timestamp: s.now(),
		Raw:       raw,
	}
	if err := s.store.AppendPosition(ctx, pos); err != nil {
		return IngestResult{}, fmt.Errorf("store position for %s: %w", facts.DeviceID, err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, broadcast.NewEvent(device, pos)); err != nil {
			s.logger.Warn("failed to broadcast position", zap.Int64("position_id", pos.ID), zap.Error(err))
		}
	}
	return IngestResult{Status: StatusOK, ID: pos.ID}, nil
}

type ingestSnapshot struct {
	RawHex   string `json:"raw_hex"`
	SourceIP string `json:"source_ip"`
	Text     string `json:"text"`
}
