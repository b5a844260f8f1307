package models

import (
	"encoding/json"
	"time"
)

// Device is a tracker identified by its hardware IMEI.
type Device struct {
	ID         int64           `db:"id" json:"id"`
	IMEI       string          `db:"imei" json:"imei"`
	Name       string          `db:"name" json:"name"`
	DriverName *string         `db:"driver_name" json:"driver_name,omitempty"`
	TenantID   *int64          `db:"tenant_id" json:"tenant_id,omitempty"`
	Metadata   json.RawMessage `db:"device_metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// DefaultDeviceName is the display name given to auto-registered trackers.
func DefaultDeviceName(imei string) string {
	return "Tracker " + imei
}

// BelongsTo reports whether the device is owned by tenantID.
func (d *Device) BelongsTo(tenantID int64) bool {
	return d.TenantID != nil && *d.TenantID == tenantID
}
