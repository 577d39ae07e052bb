// Package geo provides straight-line distance helpers.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinates is returned for latitudes outside [-90, 90] or longitudes outside [-180, 180].
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the Haversine great-circle distance between a and b in kilometers.
// Out-of-range input is not checked and may yield NaN.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// ValidCoordinates reports whether lat and lon are finite and within range.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Validate returns ErrInvalidCoordinates if p is out of range.
func (p Point) Validate() error {
	if !ValidCoordinates(p.Lat, p.Lon) {
		return ErrInvalidCoordinates
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
