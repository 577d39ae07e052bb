package postgres

import (
	"context"
	"database/sql"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// NewLocationRepositoryWithTx creates a location repository using a transaction.
func NewLocationRepositoryWithTx(tx *sql.Tx) *LocationRepository {
	return &LocationRepository{q: tx}
}

// Append adds a location ping.
func (r *LocationRepository) Append(ctx context.Context, location *domain.TripLocation) error {
	query := `
		INSERT INTO trip_locations (id, trip_id, latitude, longitude, speed, heading, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		location.ID,
		location.TripID,
		location.Latitude,
		location.Longitude,
		nullFloat(location.Speed),
		nullFloat(location.Heading),
		location.Timestamp,
	)

	return err
}

// ListByTripID returns a trip's pings ordered by timestamp.
func (r *LocationRepository) ListByTripID(ctx context.Context, tripID string) ([]*domain.TripLocation, error) {
	query := `
		SELECT id, trip_id, latitude, longitude, speed, heading, recorded_at
		FROM trip_locations
		WHERE trip_id = $1
		ORDER BY recorded_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*domain.TripLocation
	for rows.Next() {
		var loc domain.TripLocation
		var speed, heading sql.NullFloat64

		if err := rows.Scan(&loc.ID, &loc.TripID, &loc.Latitude, &loc.Longitude, &speed, &heading, &loc.Timestamp); err != nil {
			return nil, err
		}

		loc.Speed = floatPtr(speed)
		loc.Heading = floatPtr(heading)
		locations = append(locations, &loc)
	}

	return locations, rows.Err()
}

// Ensure LocationRepository implements repository.LocationRepository.
var _ repository.LocationRepository = (*LocationRepository)(nil)
