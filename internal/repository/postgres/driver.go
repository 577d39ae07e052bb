package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

const driverColumns = `id, user_id, COALESCE(name, ''), COALESCE(phone, ''), status, is_online, rating, total_trips`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1 AND deleted_at IS NULL`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return driver, nil
}

// ListAvailable retrieves approved, online drivers.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers
		WHERE status = $1 AND is_online AND deleted_at IS NULL
		ORDER BY id
	`

	rows, err := r.q.QueryContext(ctx, query, domain.DriverStatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}

	return drivers, rows.Err()
}

// SetOnline updates the online flag of a driver.
func (r *DriverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	return r.exec(ctx, `UPDATE drivers SET is_online = $1 WHERE id = $2 AND deleted_at IS NULL`, online, id)
}

// IncrementTotalTrips adds one completed trip to the driver's count.
func (r *DriverRepository) IncrementTotalTrips(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE drivers SET total_trips = total_trips + 1 WHERE id = $1`, id)
}

// UpdateRating stores the driver's average rating.
func (r *DriverRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	return r.exec(ctx, `UPDATE drivers SET rating = $1 WHERE id = $2`, rating, id)
}

func (r *DriverRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, repository.ErrNotFound)
}

func scanDriver(row scanner) (*domain.Driver, error) {
	var driver domain.Driver
	err := row.Scan(
		&driver.ID,
		&driver.UserID,
		&driver.Name,
		&driver.Phone,
		&driver.Status,
		&driver.IsOnline,
		&driver.Rating,
		&driver.TotalTrips,
	)
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
