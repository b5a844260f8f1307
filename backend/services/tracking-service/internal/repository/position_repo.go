package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

const positionColumns = `p.id, p.device_id, p.latitude, p.longitude, p.altitude, p.speed, p.course, p.recorded_at, p.raw`

// PositionRepository persists location fixes.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository returns repository.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Insert stores a new position and fills its id.
func (r *PositionRepository) Insert(ctx context.Context, p *models.Position) error {
	const query = `
		INSERT INTO positions (device_id, latitude, longitude, altitude, speed, course, recorded_at, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var raw interface{}
	if len(p.Raw) > 0 {
		raw = string(p.Raw)
	}
	return r.db.QueryRowContext(ctx, query,
		p.DeviceID,
		p.Latitude,
		p.Longitude,
		p.Altitude,
		p.Speed,
		p.Course,
		p.Timestamp,
		raw,
	).Scan(&p.ID)
}

// LatestByIMEI returns the newest position of the device visible in scope.
func (r *PositionRepository) LatestByIMEI(ctx context.Context, imei string, scope models.Scope) (*models.Position, error) {
	const query = `
		SELECT ` + positionColumns + `
		FROM positions p
		JOIN devices d ON d.id = p.device_id
		WHERE d.imei = $1 AND ($2::boolean OR d.tenant_id = $3::bigint)
		ORDER BY p.recorded_at DESC, p.id DESC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, imei, scope.Global, scope.TenantID)
	if err != nil {
		return nil, err
	}
	positions, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNotFound
	}
	return &positions[0], nil
}

// List returns history newest first.
func (r *PositionRepository) List(ctx context.Context, filter models.PositionFilter) ([]models.Position, error) {
	const query = `
		SELECT ` + positionColumns + `
		FROM positions p
		JOIN devices d ON d.id = p.device_id
		WHERE ($1::boolean OR d.tenant_id = $2::bigint) AND ($3::bigint = 0 OR p.device_id = $3::bigint)
		ORDER BY p.recorded_at DESC, p.id DESC
		LIMIT $4::integer
	`
	rows, err := r.db.QueryContext(ctx, query, filter.Scope.Global, filter.Scope.TenantID, filter.DeviceID, filter.Limit)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

// Snapshot returns the latest position of every device in scope.
func (r *PositionRepository) Snapshot(ctx context.Context, scope models.Scope) ([]models.Position, error) {
	const query = `
		SELECT DISTINCT ON (p.device_id) ` + positionColumns + `
		FROM positions p
		JOIN devices d ON d.id = p.device_id
		WHERE ($1::boolean OR d.tenant_id = $2::bigint)
		ORDER BY p.device_id, p.recorded_at DESC, p.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, scope.Global, scope.TenantID)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

// Between returns positions of one device ordered by capture time. Nil
// bounds are open.
func (r *PositionRepository) Between(ctx context.Context, deviceID int64, from, to *time.Time) ([]models.Position, error) {
	const query = `
		SELECT ` + positionColumns + `
		FROM positions p
		WHERE p.device_id = $1
			AND ($2::timestamptz IS NULL OR p.recorded_at >= $2::timestamptz)
			AND ($3::timestamptz IS NULL OR p.recorded_at <= $3::timestamptz)
		ORDER BY p.recorded_at ASC, p.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]models.Position, error) {
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var (
			p        models.Position
			altitude sql.NullFloat64
			raw      []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.DeviceID,
			&p.Latitude,
			&p.Longitude,
			&altitude,
			&p.Speed,
			&p.Course,
			&p.Timestamp,
			&raw,
		); err != nil {
			return nil, err
		}
		if altitude.Valid {
			p.Altitude = &altitude.Float64
		}
		if len(raw) > 0 {
			p.Raw = raw
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
