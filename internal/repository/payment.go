package repository

import (
	"context"

	"ridehail/internal/domain"
)

// PaymentRepository defines the persistence operations for trip payments.
type PaymentRepository interface {
	// Create persists a new payment. Returns ErrConflict if the trip already has one.
	Create(ctx context.Context, payment *domain.TripPayment) error

	// GetByTripID retrieves the payment of a trip.
	GetByTripID(ctx context.Context, tripID string) (*domain.TripPayment, error)

	// Update persists paid state and reference changes. The first stored
	// PaidAt wins and is copied back into payment.
	Update(ctx context.Context, payment *domain.TripPayment) error
}
