package postgres

import (
	"context"
	"database/sql"

	"ridehail/internal/repository"
)

// Transactor runs units of work in a database transaction.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn with transaction-scoped repositories.
func (t *Transactor) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(NewRepositoriesWithTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

// NewRepositories builds repositories on the connection pool.
func NewRepositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Trips:      NewTripRepository(db),
		Locations:  NewLocationRepository(db),
		Ratings:    NewRatingRepository(db),
		Payments:   NewPaymentRepository(db),
		Pricing:    NewPricingRepository(db),
		Drivers:    NewDriverRepository(db),
		Vehicles:   NewVehicleRepository(db),
		Passengers: NewPassengerRepository(db),
	}
}

// NewRepositoriesWithTx builds repositories bound to tx.
func NewRepositoriesWithTx(tx *sql.Tx) repository.Repositories {
	return repository.Repositories{
		Trips:      NewTripRepositoryWithTx(tx),
		Locations:  NewLocationRepositoryWithTx(tx),
		Ratings:    NewRatingRepositoryWithTx(tx),
		Payments:   NewPaymentRepositoryWithTx(tx),
		Pricing:    NewPricingRepositoryWithTx(tx),
		Drivers:    NewDriverRepositoryWithTx(tx),
		Vehicles:   NewVehicleRepositoryWithTx(tx),
		Passengers: NewPassengerRepositoryWithTx(tx),
	}
}

// Ensure Transactor implements repository.Transactor.
var _ repository.Transactor = (*Transactor)(nil)
