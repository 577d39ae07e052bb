package domain

// Passenger represents a rider.
type Passenger struct {
	ID         string
	UserID     string
	Name       string
	Phone      string
	Rating     float64
	TotalTrips int
}
