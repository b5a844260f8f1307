package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackhub/backend/services/tracking-service/internal/models"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(minutes int, lat, lon float64) models.Position {
	return models.Position{Latitude: lat, Longitude: lon, Timestamp: t0.Add(time.Duration(minutes) * time.Minute)}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Harare to Bulawayo
	d := Haversine(-17.8292, 31.0522, -20.1325, 28.6265)
	assert.InDelta(t, 361.4, d, 1)
	assert.Zero(t, Haversine(10, 20, 10, 20))
}

func TestRouteIdenticalPointsIsZero(t *testing.T) {
	route := BuildRoute(7, []models.Position{at(0, -17.824858, 31.053028), at(1, -17.824858, 31.053028)})
	assert.Equal(t, 0.0, route.TotalDistanceKM)
	assert.Equal(t, 2, route.TotalPoints)
	assert.Equal(t, int64(7), route.DeviceID)
}

func TestRouteDistanceIsSymmetric(t *testing.T) {
	a, b := at(0, -17.8, 31.0), at(5, -17.9, 31.2)
	forward := BuildRoute(1, []models.Position{a, b})
	backward := BuildRoute(1, []models.Position{b, a})
	assert.Equal(t, forward.TotalDistanceKM, backward.TotalDistanceKM)
	assert.Greater(t, forward.TotalDistanceKM, 0.0)
}

func TestRouteEmpty(t *testing.T) {
	route := BuildRoute(1, nil)
	assert.Empty(t, route.Points)
	assert.NotNil(t, route.Points)
	assert.Zero(t, route.TotalDistanceKM)
}

func TestRouteRoundsToTwoDecimals(t *testing.T) {
	route := BuildRoute(1, []models.Position{at(0, 0, 0), at(1, 0, 0.01)})
	assert.Equal(t, 1.11, route.TotalDistanceKM)
}

func TestSegmentTripsSplitsOnGap(t *testing.T) {
	trips := SegmentTrips([]models.Position{at(0, 1, 1), at(10, 1, 1.01), at(50, 1, 1.02)}, 30*time.Minute)

	require.Len(t, trips, 1)
	trip := trips[0]
	assert.Equal(t, 2, trip.PointsCount)
	assert.Equal(t, t0, trip.StartTime)
	assert.Equal(t, t0.Add(10*time.Minute), trip.EndTime)
	assert.Equal(t, 10.0, trip.DurationMinutes)
	assert.Equal(t, models.Location{Lat: 1, Lng: 1}, trip.StartLocation)
	assert.Equal(t, models.Location{Lat: 1, Lng: 1.01}, trip.EndLocation)
	assert.InDelta(t, 1.11, trip.DistanceKM, 0.01)
}

func TestSegmentTripsGapEqualToThresholdStaysInTrip(t *testing.T) {
	trips := SegmentTrips([]models.Position{at(0, 1, 1), at(30, 1, 1), at(61, 1, 1), at(62, 1, 1)}, 30*time.Minute)
	require.Len(t, trips, 2)
	assert.Equal(t, 2, trips[0].PointsCount)
	assert.Equal(t, 2, trips[1].PointsCount)
}

func TestSegmentTripsEdgeCases(t *testing.T) {
	assert.Empty(t, SegmentTrips(nil, time.Hour))
	assert.Empty(t, SegmentTrips([]models.Position{at(0, 1, 1)}, time.Hour))

	trips := SegmentTrips([]models.Position{at(0, 1, 1), at(0, 1, 1)}, time.Hour)
	require.Len(t, trips, 1)
	assert.Zero(t, trips[0].DurationMinutes)
	assert.Equal(t, 2, trips[0].PointsCount)
}

func TestSegmentTripsPartitionsAllPoints(t *testing.T) {
	positions := []models.Position{at(0, 0, 0), at(5, 0, 0), at(40, 0, 0), at(41, 0, 0), at(42, 0, 0), at(200, 0, 0), at(300, 0, 0), at(301, 0, 0)}
	trips := SegmentTrips(positions, 0)

	var covered int
	for _, trip := range trips {
		covered += trip.PointsCount
	}
	// the lone fix at 200 is the only point left out
	assert.Equal(t, len(positions)-1, covered)
	assert.Len(t, trips, 3)
}
