package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// RatingRole identifies who submitted a rating.
type RatingRole string

const (
	RatingRolePassenger RatingRole = "PASSENGER" // passenger rates the driver
	RatingRoleDriver    RatingRole = "DRIVER"    // driver rates the passenger
)

// Valid reports whether r is a known role.
func (r RatingRole) Valid() bool {
	return r == RatingRolePassenger || r == RatingRoleDriver
}

// TripRating holds both halves of a trip's rating.
type TripRating struct {
	ID               string
	TripID           string
	PassengerRating  *int
	PassengerComment string
	DriverRating     *int
	DriverComment    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Set writes the half belonging to role.
func (r *TripRating) Set(role RatingRole, score int, comment string, at time.Time) {
	switch role {
	case RatingRolePassenger:
		r.PassengerRating = &score
		r.PassengerComment = comment
	case RatingRoleDriver:
		r.DriverRating = &score
		r.DriverComment = comment
	}
	r.UpdatedAt = at
}

// ValidRating reports whether score is within the accepted range.
func ValidRating(score int) bool {
	return score >= MinRating && score <= MaxRating
}
