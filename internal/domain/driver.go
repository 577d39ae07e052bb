package domain

// DriverStatus represents the approval status of a driver.
type DriverStatus string

const (
	DriverStatusPending   DriverStatus = "PENDING"
	DriverStatusApproved  DriverStatus = "APPROVED"
	DriverStatusSuspended DriverStatus = "SUSPENDED"
)

// Driver represents a driver in the system.
type Driver struct {
	ID         string
	UserID     string
	Name       string
	Phone      string
	Status     DriverStatus
	IsOnline   bool
	Rating     float64
	TotalTrips int
}

// Available reports whether the driver can take a new trip.
func (d *Driver) Available() bool {
	return d.Status == DriverStatusApproved && d.IsOnline
}
