package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `
		SELECT id, driver_id, class, plate_number, is_active, is_verified
		FROM vehicles WHERE id = $1 AND deleted_at IS NULL
	`

	var v domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.DriverID, &v.Class, &v.PlateNumber, &v.IsActive, &v.IsVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &v, nil
}

// ListByDriverID retrieves the vehicles registered to a driver.
func (r *VehicleRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Vehicle, error) {
	query := `
		SELECT id, driver_id, class, plate_number, is_active, is_verified
		FROM vehicles WHERE driver_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`

	rows, err := r.q.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.ID, &v.DriverID, &v.Class, &v.PlateNumber, &v.IsActive, &v.IsVerified); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}

	return vehicles, rows.Err()
}

// Ensure VehicleRepository implements repository.VehicleRepository.
var _ repository.VehicleRepository = (*VehicleRepository)(nil)
