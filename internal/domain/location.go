package domain

import "time"

// TripLocation is one GPS ping recorded for a trip.
type TripLocation struct {
	ID        string
	TripID    string
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
}
