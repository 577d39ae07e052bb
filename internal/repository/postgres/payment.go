package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.TripPayment) error {
	query := `
		INSERT INTO trip_payments (id, trip_id, amount, method, reference, is_paid, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.TripID,
		payment.Amount,
		payment.Method,
		payment.Reference,
		payment.IsPaid,
		nullTime(payment.PaidAt),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}

	return err
}

// GetByTripID retrieves the payment of a trip.
func (r *PaymentRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripPayment, error) {
	query := `
		SELECT id, trip_id, amount, method, reference, is_paid, paid_at, created_at, updated_at
		FROM trip_payments WHERE trip_id = $1
	`

	var payment domain.TripPayment
	var paidAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, tripID).Scan(
		&payment.ID,
		&payment.TripID,
		&payment.Amount,
		&payment.Method,
		&payment.Reference,
		&payment.IsPaid,
		&paidAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	payment.PaidAt = timePtr(paidAt)

	return &payment, nil
}

// Update persists paid state and reference changes. A stored paid_at is
// never overwritten; payment.PaidAt is refreshed from the row.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.TripPayment) error {
	query := `
		UPDATE trip_payments
		SET reference = $1, is_paid = $2, paid_at = COALESCE(paid_at, $3), updated_at = $4
		WHERE id = $5
		RETURNING paid_at
	`

	var paidAt sql.NullTime
	err := r.q.QueryRowContext(ctx, query,
		payment.Reference,
		payment.IsPaid,
		nullTime(payment.PaidAt),
		payment.UpdatedAt,
		payment.ID,
	).Scan(&paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}

	payment.PaidAt = timePtr(paidAt)
	return nil
}

// Ensure PaymentRepository implements repository.PaymentRepository.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)
