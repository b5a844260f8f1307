package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id              BIGSERIAL PRIMARY KEY,
	imei            TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	driver_name     TEXT,
	tenant_id       BIGINT,
	device_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS positions (
	id          BIGSERIAL PRIMARY KEY,
	device_id   BIGINT NOT NULL REFERENCES devices (id),
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	altitude    DOUBLE PRECISION,
	speed       DOUBLE PRECISION NOT NULL DEFAULT 0,
	course      DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	raw         JSONB
);

CREATE INDEX IF NOT EXISTS positions_device_recorded_at_idx ON positions (device_id, recorded_at DESC);
`

// Store is the Postgres backed position store.
type Store struct {
	db        *sql.DB
	devices   *DeviceRepository
	positions *PositionRepository
}

// NewStore composes the device and position repositories.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		devices:   NewDeviceRepository(db),
		positions: NewPositionRepository(db),
	}
}

// EnsureSchema creates tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("repository: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) FindDeviceByIMEI(ctx context.Context, imei string) (*models.Device, error) {
	return s.devices.FindByIMEI(ctx, imei)
}

func (s *Store) FindDeviceByID(ctx context.Context, id int64) (*models.Device, error) {
	return s.devices.FindByID(ctx, id)
}

func (s *Store) FindOrCreateDevice(ctx context.Context, imei, name string) (*models.Device, bool, error) {
	return s.devices.FindOrCreate(ctx, imei, name)
}

func (s *Store) AppendPosition(ctx context.Context, p *models.Position) error {
	return s.positions.Insert(ctx, p)
}

func (s *Store) LatestPosition(ctx context.Context, imei string, scope models.Scope) (*models.Position, error) {
	return s.positions.LatestByIMEI(ctx, imei, scope)
}

func (s *Store) ListPositions(ctx context.Context, filter models.PositionFilter) ([]models.Position, error) {
	return s.positions.List(ctx, filter)
}

func (s *Store) Snapshot(ctx context.Context, scope models.Scope) ([]models.Position, error) {
	return s.positions.Snapshot(ctx, scope)
}

func (s *Store) PositionsBetween(ctx context.Context, deviceID int64, from, to *time.Time) ([]models.Position, error) {
	return s.positions.Between(ctx, deviceID, from, to)
}
