package analytics

import (
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

// DefaultTripGap splits trips when consecutive fixes are further apart.
const DefaultTripGap = 30 * time.Minute

// SegmentTrips partitions positions, ordered by timestamp, into runs whose
// consecutive gaps do not exceed gap. Runs with fewer than two points carry
// no duration or distance and are dropped from the result.
func SegmentTrips(positions []models.Position, gap time.Duration) []models.Trip {
	if gap <= 0 {
		gap = DefaultTripGap
	}

	trips := make([]models.Trip, 0)
	start := 0
	for i := 1; i <= len(positions); i++ {
		if i < len(positions) && positions[i].Timestamp.Sub(positions[i-1].Timestamp) <= gap {
			continue
		}
		if run := positions[start:i]; len(run) >= 2 {
			trips = append(trips, summarize(run))
		}
		start = i
	}
	return trips
}

func summarize(run []models.Position) models.Trip {
	first, last := run[0], run[len(run)-1]
	return models.Trip{
		StartTime:       first.Timestamp,
		EndTime:         last.Timestamp,
		DurationMinutes: round(last.Timestamp.Sub(first.Timestamp).Minutes(), 1),
		DistanceKM:      round(PathDistance(run), 2),
		StartLocation:   models.Location{Lat: first.Latitude, Lng: first.Longitude},
		EndLocation:     models.Location{Lat: last.Latitude, Lng: last.Longitude},
		PointsCount:     len(run),
	}
}
