package repository

import (
	"context"

	"ridehail/internal/domain"
)

// TripRepository defines the persistence operations for trips.
// Soft-deleted trips are invisible to every read.
type TripRepository interface {
	// Create persists a new trip. Returns ErrConflict if the passenger already
	// has an active trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByCode retrieves a trip by its display code.
	GetByCode(ctx context.Context, code string) (*domain.Trip, error)

	// List retrieves trips matching the filter, newest first.
	List(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error)

	// GetActiveByPassengerID retrieves the passenger's non-terminal trip.
	// Returns nil if no active trip exists.
	GetActiveByPassengerID(ctx context.Context, passengerID string) (*domain.Trip, error)

	// GetActiveByDriverID retrieves the trip currently occupying the driver.
	// Returns nil if no active trip exists.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error)

	// UpdateTransition writes a status change only if the stored row still has
	// fromStatus and fromVersion. Returns ErrStaleState otherwise and ErrConflict
	// if the driver is already occupied by another trip.
	UpdateTransition(ctx context.Context, trip *domain.Trip, fromStatus domain.TripStatus, fromVersion int64) error

	// SoftDelete hides a trip from all reads.
	SoftDelete(ctx context.Context, id string) error
}

// LocationRepository stores the GPS trail of trips.
type LocationRepository interface {
	// Append adds a location ping.
	Append(ctx context.Context, location *domain.TripLocation) error

	// ListByTripID returns a trip's pings ordered by timestamp.
	ListByTripID(ctx context.Context, tripID string) ([]*domain.TripLocation, error)
}

// RatingRepository stores trip ratings.
type RatingRepository interface {
	// GetByTripID retrieves the rating of a trip.
	GetByTripID(ctx context.Context, tripID string) (*domain.TripRating, error)

	// UpsertHalf creates the rating of a trip or writes role's score and
	// comment into the existing one. The other half is left as stored.
	UpsertHalf(ctx context.Context, rating *domain.TripRating, role domain.RatingRole) error

	// AverageForDriver averages the passenger scores over the driver's completed trips.
	AverageForDriver(ctx context.Context, driverID string) (float64, int, error)

	// AverageForPassenger averages the driver scores over the passenger's completed trips.
	AverageForPassenger(ctx context.Context, passengerID string) (float64, int, error)
}
