package repository

import (
	"context"
	"database/sql"
	"errors"

	"trackhub/backend/services/tracking-service/internal/models"
)

const deviceColumns = `id, imei, name, driver_name, tenant_id, device_metadata, created_at`

// DeviceRepository persists trackers.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository returns repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FindByIMEI returns the device registered under imei.
func (r *DeviceRepository) FindByIMEI(ctx context.Context, imei string) (*models.Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices WHERE imei = $1`
	return scanDevice(r.db.QueryRowContext(ctx, query, imei))
}

// FindByID returns the device with the given primary key.
func (r *DeviceRepository) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

// FindOrCreate registers imei on first sight. Concurrent callers racing on
// the same imei all receive the single stored row; created is true only for
// the caller whose insert won.
func (r *DeviceRepository) FindOrCreate(ctx context.Context, imei, name string) (*models.Device, bool, error) {
	const query = `
		INSERT INTO devices (imei, name)
		VALUES ($1, $2)
		ON CONFLICT (imei) DO UPDATE SET imei = EXCLUDED.imei
		RETURNING ` + deviceColumns + `, (xmax = 0) AS inserted
	`
	var (
		device   models.Device
		driver   sql.NullString
		tenant   sql.NullInt64
		metadata []byte
		inserted bool
	)
	err := r.db.QueryRowContext(ctx, query, imei, name).Scan(
		&device.ID,
		&device.IMEI,
		&device.Name,
		&driver,
		&tenant,
		&metadata,
		&device.CreatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	fillNullable(&device, driver, tenant, metadata)
	return &device, inserted, nil
}

func scanDevice(row *sql.Row) (*models.Device, error) {
	var (
		device   models.Device
		driver   sql.NullString
		tenant   sql.NullInt64
		metadata []byte
	)
	err := row.Scan(
		&device.ID,
		&device.IMEI,
		&device.Name,
		&driver,
		&tenant,
		&metadata,
		&device.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fillNullable(&device, driver, tenant, metadata)
	return &device, nil
}

func fillNullable(device *models.Device, driver sql.NullString, tenant sql.NullInt64, metadata []byte) {
	if driver.Valid {
		device.DriverName = &driver.String
	}
	if tenant.Valid {
		device.TenantID = &tenant.Int64
	}
	if len(metadata) > 0 {
		device.Metadata = metadata
	}
}
