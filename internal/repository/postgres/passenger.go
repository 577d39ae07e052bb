package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// PassengerRepository implements repository.PassengerRepository using PostgreSQL.
type PassengerRepository struct {
	q Querier
}

// NewPassengerRepository creates a new PassengerRepository.
func NewPassengerRepository(db *sql.DB) *PassengerRepository {
	return &PassengerRepository{q: db}
}

// NewPassengerRepositoryWithTx creates a passenger repository using a transaction.
func NewPassengerRepositoryWithTx(tx *sql.Tx) *PassengerRepository {
	return &PassengerRepository{q: tx}
}

// GetByID retrieves a passenger by ID.
func (r *PassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	query := `
		SELECT id, user_id, name, phone, rating, total_trips
		FROM passengers WHERE id = $1 AND deleted_at IS NULL
	`

	var p domain.Passenger
	err := r.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Phone, &p.Rating, &p.TotalTrips)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// IncrementTotalTrips adds one completed trip to the passenger's count.
func (r *PassengerRepository) IncrementTotalTrips(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE passengers SET total_trips = total_trips + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, repository.ErrNotFound)
}

// UpdateRating stores the passenger's average rating.
func (r *PassengerRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	result, err := r.q.ExecContext(ctx, `UPDATE passengers SET rating = $1 WHERE id = $2`, rating, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, repository.ErrNotFound)
}

// Ensure PassengerRepository implements repository.PassengerRepository.
var _ repository.PassengerRepository = (*PassengerRepository)(nil)
