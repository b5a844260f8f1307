package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/analytics"
	"trackhub/backend/services/tracking-service/internal/models"
	"trackhub/backend/services/tracking-service/internal/repository"
)

// History listing bounds.
const (
	DefaultListLimit = 10
	MaxListLimit     = 1000
	DefaultTripDays  = 7
	MaxTripDays      = 3650
)

// PositionsService answers the tenant-scoped read queries.
type PositionsService struct {
	store   PositionStore
	tripGap time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewPositionsService returns service instance.
func NewPositionsService(store PositionStore, tripGap time.Duration, logger *zap.Logger) *PositionsService {
	if tripGap <= 0 {
		tripGap = analytics.DefaultTripGap
	}
	return &PositionsService{
		store:   store,
		tripGap: tripGap,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Latest returns the newest position of the device with the given IMEI.
func (s *PositionsService) Latest(ctx context.Context, imei string, scope models.Scope) (*models.Position, error) {
	p, err := s.store.LatestPosition(ctx, imei, scope)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPositions
	}
	if err != nil {
		return nil, fmt.Errorf("latest position for %s: %w", imei, err)
	}
	return p, nil
}

// List returns position history, newest first.
func (s *PositionsService) List(ctx context.Context, filter models.PositionFilter) ([]models.Position, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	positions, err := s.store.ListPositions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}

// Snapshot returns the latest position of every visible device.
func (s *PositionsService) Snapshot(ctx context.Context, scope models.Scope) ([]models.Position, error) {
	positions, err := s.store.Snapshot(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("fleet snapshot: %w", err)
	}
	return positions, nil
}

// Route rebuilds the path travelled between the optional bounds.
func (s *PositionsService) Route(ctx context.Context, deviceID int64, scope models.Scope, from, to *time.Time) (models.Route, error) {
	if _, err := s.authorize(ctx, deviceID, scope); err != nil {
		return models.Route{}, err
	}
	positions, err := s.store.PositionsBetween(ctx, deviceID, from, to)
	if err != nil {
		return models.Route{}, fmt.Errorf("route positions for device %d: %w", deviceID, err)
	}
	return analytics.BuildRoute(deviceID, positions), nil
}

// Trips segments the last days of positions into trips.
func (s *PositionsService) Trips(ctx context.Context, deviceID int64, scope models.Scope, days int) (models.TripSummary, error) {
	if days <= 0 {
		days = DefaultTripDays
	}
	if days > MaxTripDays {
		days = MaxTripDays
	}
	if _, err := s.authorize(ctx, deviceID, scope); err != nil {
		return models.TripSummary{}, err
	}
	from := s.now().AddDate(0, 0, -days)
	positions, err := s.store.PositionsBetween(ctx, deviceID, &from, nil)
	if err != nil {
		return models.TripSummary{}, fmt.Errorf("trip positions for device %d: %w", deviceID, err)
	}
	trips := analytics.SegmentTrips(positions, s.tripGap)
	return models.TripSummary{
		DeviceID:   deviceID,
		Trips:      trips,
		TotalTrips: len(trips),
		PeriodDays: days,
	}, nil
}

func (s *PositionsService) authorize(ctx context.Context, deviceID int64, scope models.Scope) (*models.Device, error) {
	device, err := s.store.FindDeviceByID(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device %d: %w", deviceID, err)
	}
	if !scope.Allows(device) {
		return nil, ErrForbidden
	}
	return device, nil
}
