package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// RatingRepository is a PostgreSQL implementation of repository.RatingRepository.
type RatingRepository struct {
	q Querier
}

// NewRatingRepository creates a new PostgreSQL rating repository.
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{q: db}
}

// NewRatingRepositoryWithTx creates a rating repository using a transaction.
func NewRatingRepositoryWithTx(tx *sql.Tx) *RatingRepository {
	return &RatingRepository{q: tx}
}

// GetByTripID retrieves the rating of a trip.
func (r *RatingRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripRating, error) {
	query := `
		SELECT id, trip_id, passenger_rating, passenger_comment, driver_rating, driver_comment, created_at, updated_at
		FROM trip_ratings WHERE trip_id = $1
	`

	var rating domain.TripRating
	var passengerRating, driverRating sql.NullInt64

	err := r.q.QueryRowContext(ctx, query, tripID).Scan(
		&rating.ID,
		&rating.TripID,
		&passengerRating,
		&rating.PassengerComment,
		&driverRating,
		&rating.DriverComment,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	rating.PassengerRating = intPtr(passengerRating)
	rating.DriverRating = intPtr(driverRating)

	return &rating, nil
}

const insertRatingQuery = `
	INSERT INTO trip_ratings (id, trip_id, passenger_rating, passenger_comment, driver_rating, driver_comment, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (trip_id) DO UPDATE
`

// upsertRatingQuery returns the insert whose conflict branch touches only
// the columns owned by role.
func upsertRatingQuery(role domain.RatingRole) (string, error) {
	switch role {
	case domain.RatingRolePassenger:
		return insertRatingQuery + `
	SET passenger_rating = EXCLUDED.passenger_rating,
	    passenger_comment = EXCLUDED.passenger_comment,
	    updated_at = EXCLUDED.updated_at`, nil
	case domain.RatingRoleDriver:
		return insertRatingQuery + `
	SET driver_rating = EXCLUDED.driver_rating,
	    driver_comment = EXCLUDED.driver_comment,
	    updated_at = EXCLUDED.updated_at`, nil
	}
	return "", fmt.Errorf("unknown rating role %q", role)
}

// UpsertHalf creates the rating of a trip or updates role's half of it.
func (r *RatingRepository) UpsertHalf(ctx context.Context, rating *domain.TripRating, role domain.RatingRole) error {
	query, err := upsertRatingQuery(role)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		rating.ID,
		rating.TripID,
		nullInt(rating.PassengerRating),
		rating.PassengerComment,
		nullInt(rating.DriverRating),
		rating.DriverComment,
		rating.CreatedAt,
		rating.UpdatedAt,
	)

	return err
}

// AverageForDriver averages the passenger scores over the driver's completed trips.
func (r *RatingRepository) AverageForDriver(ctx context.Context, driverID string) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(tr.passenger_rating), 0), COUNT(tr.passenger_rating)
		FROM trip_ratings tr
		JOIN trips t ON t.id = tr.trip_id
		WHERE t.driver_id = $1 AND t.status = $2 AND t.deleted_at IS NULL
	`
	return r.average(ctx, query, driverID)
}

// AverageForPassenger averages the driver scores over the passenger's completed trips.
func (r *RatingRepository) AverageForPassenger(ctx context.Context, passengerID string) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(tr.driver_rating), 0), COUNT(tr.driver_rating)
		FROM trip_ratings tr
		JOIN trips t ON t.id = tr.trip_id
		WHERE t.passenger_id = $1 AND t.status = $2 AND t.deleted_at IS NULL
	`
	return r.average(ctx, query, passengerID)
}

func (r *RatingRepository) average(ctx context.Context, query, id string) (float64, int, error) {
	var avg float64
	var count int

	if err := r.q.QueryRowContext(ctx, query, id, domain.TripStatusCompleted).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}

	return avg, count, nil
}

// Ensure RatingRepository implements repository.RatingRepository.
var _ repository.RatingRepository = (*RatingRepository)(nil)
