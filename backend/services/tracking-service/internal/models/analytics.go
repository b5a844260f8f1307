package models

import "time"

// RoutePoint is one step of a reconstructed route.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
}

// Route is the ordered path of a device within a time window.
type Route struct {
	DeviceID        int64        `json:"device_id"`
	Points          []RoutePoint `json:"points"`
	TotalDistanceKM float64      `json:"total_distance_km"`
	TotalPoints     int          `json:"total_points"`
}

// Location is a bare coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Trip is a run of positions without a gap longer than the trip threshold.
type Trip struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	DistanceKM      float64   `json:"distance_km"`
	StartLocation   Location  `json:"start_location"`
	EndLocation     Location  `json:"end_location"`
	PointsCount     int       `json:"points_count"`
}

// TripSummary is the trips response for a lookback window.
type TripSummary struct {
	DeviceID   int64  `json:"device_id"`
	Trips      []Trip `json:"trips"`
	TotalTrips int    `json:"total_trips"`
	PeriodDays int    `json:"period_days"`
}
