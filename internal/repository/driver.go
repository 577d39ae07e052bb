package repository

import (
	"context"

	"ridehail/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// ListAvailable retrieves approved, online drivers.
	ListAvailable(ctx context.Context) ([]*domain.Driver, error)

	// SetOnline updates the online flag of a driver.
	SetOnline(ctx context.Context, id string, online bool) error

	// IncrementTotalTrips adds one completed trip to the driver's count.
	IncrementTotalTrips(ctx context.Context, id string) error

	// UpdateRating stores the driver's average rating.
	UpdateRating(ctx context.Context, id string, rating float64) error
}

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// ListByDriverID retrieves the vehicles registered to a driver.
	ListByDriverID(ctx context.Context, driverID string) ([]*domain.Vehicle, error)
}

// PassengerRepository defines the persistence operations for passengers.
type PassengerRepository interface {
	// GetByID retrieves a passenger by ID.
	GetByID(ctx context.Context, id string) (*domain.Passenger, error)

	// IncrementTotalTrips adds one completed trip to the passenger's count.
	IncrementTotalTrips(ctx context.Context, id string) error

	// UpdateRating stores the passenger's average rating.
	UpdateRating(ctx context.Context, id string, rating float64) error
}
