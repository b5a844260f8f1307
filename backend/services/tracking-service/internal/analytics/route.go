package analytics

import "trackhub/backend/services/tracking-service/internal/models"

// BuildRoute turns positions, already ordered by timestamp, into a route with
// the accumulated haversine distance rounded to two decimals.
func BuildRoute(deviceID int64, positions []models.Position) models.Route {
	route := models.Route{
		DeviceID: deviceID,
		Points:   make([]models.RoutePoint, 0, len(positions)),
	}

	var total float64
	for i, p := range positions {
		if i > 0 {
			prev := positions[i-1]
			total += Haversine(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
		route.Points = append(route.Points, models.RoutePoint{
			Lat:       p.Latitude,
			Lng:       p.Longitude,
			Timestamp: p.Timestamp,
			Speed:     p.Speed,
		})
	}

	route.TotalDistanceKM = round(total, 2)
	route.TotalPoints = len(route.Points)
	return route
}

// PathDistance sums haversine steps over positions without rounding.
func PathDistance(positions []models.Position) float64 {
	var total float64
	for i := 1; i < len(positions); i++ {
		prev, cur := positions[i-1], positions[i]
		total += Haversine(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}
	return total
}
