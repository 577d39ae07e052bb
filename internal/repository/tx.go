package repository

import "context"

// Repositories groups repositories that share one unit of work.
type Repositories struct {
	Trips      TripRepository
	Locations  LocationRepository
	Ratings    RatingRepository
	Payments   PaymentRepository
	Pricing    PricingRepository
	Drivers    DriverRepository
	Vehicles   VehicleRepository
	Passengers PassengerRepository
}

// Transactor runs fn inside a single transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
