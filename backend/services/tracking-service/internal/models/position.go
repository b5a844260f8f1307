package models

import (
	"encoding/json"
	"time"
)

// Position is an immutable location fix reported by a device.
type Position struct {
	ID        int64           `db:"id" json:"id"`
	DeviceID  int64           `db:"device_id" json:"device_id"`
	Latitude  float64         `db:"latitude" json:"latitude"`
	Longitude float64         `db:"longitude" json:"longitude"`
	Altitude  *float64        `db:"altitude" json:"altitude,omitempty"`
	Speed     float64         `db:"speed" json:"speed"`
	Course    float64         `db:"course" json:"course"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
	Raw       json.RawMessage `db:"raw" json:"raw,omitempty"`
}

// ValidCoordinates reports whether lat/lon fall inside WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
