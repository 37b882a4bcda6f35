// Package geo provides home proximity detection and reverse geocoding
// for vehicle positions.
package geo

import "math"

const earthRadiusMeters = 6371000

// DistanceMeters returns the haversine great-circle distance between
// two coordinates.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Home is a fixed reference point with a radius.
type Home struct {
	Lat    float64
	Lon    float64
	Radius float64 // meters
}

// Contains reports whether the coordinate falls inside the home radius.
func (h Home) Contains(lat, lon float64) bool {
	return DistanceMeters(lat, lon, h.Lat, h.Lon) <= h.Radius
}
