package service

import (
	"context"
	"errors"
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

var (
	// ErrDeviceNotFound is returned when a device id does not exist.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrForbidden is returned when the caller's tenant does not own the device.
	ErrForbidden = errors.New("not authorized to view this device")
	// ErrNoPositions is returned when a device has no visible positions.
	ErrNoPositions = errors.New("no positions")
	// ErrInvalidHex is returned when an ingest payload is not valid hex.
	ErrInvalidHex = errors.New("invalid hex")
)

// PositionStore is the persistence boundary used by the services.
// repository.Store and repository.MemoryStore both satisfy it.
type PositionStore interface {
	FindDeviceByIMEI(ctx context.Context, imei string) (*models.Device, error)
	FindDeviceByID(ctx context.Context, id int64) (*models.Device, error)
	AppendPosition(ctx context.Context, p *models.Position) error
	LatestPosition(ctx context.Context, imei string, scope models.Scope) (*models.Position, error)
	ListPositions(ctx context.Context, filter models.PositionFilter) ([]models.Position, error)
	Snapshot(ctx context.Context, scope models.Scope) ([]models.Position, error)
	PositionsBetween(ctx context.Context, deviceID int64, from, to *time.Time) ([]models.Position, error)
}
