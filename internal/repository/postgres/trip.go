package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

const tripColumns = `
	id, code, passenger_id, driver_id, vehicle_id,
	origin_address, origin_lat, origin_lng,
	destination_address, destination_lat, destination_lng,
	vehicle_class, status, status_version,
	estimated_price, final_price, distance_km, estimated_duration, actual_duration,
	passenger_notes, requested_at, accepted_at, driver_arrived_at, started_at, completed_at, cancelled_at,
	cancellation_reason, cancelled_by, updated_by, updated_at`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.Code,
		trip.PassengerID,
		nullString(trip.DriverID),
		nullString(trip.VehicleID),
		trip.Origin.Address,
		trip.Origin.Latitude,
		trip.Origin.Longitude,
		trip.Destination.Address,
		trip.Destination.Latitude,
		trip.Destination.Longitude,
		trip.VehicleClass,
		trip.Status,
		trip.Version,
		trip.EstimatedPrice,
		nullFloat(trip.FinalPrice),
		nullFloat(trip.DistanceKm),
		trip.EstimatedDuration,
		nullInt(trip.ActualDuration),
		trip.PassengerNotes,
		trip.RequestedAt,
		nullTime(trip.AcceptedAt),
		nullTime(trip.DriverArrivedAt),
		nullTime(trip.StartedAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
		trip.CancellationReason,
		trip.CancelledBy,
		trip.UpdatedBy,
		trip.UpdatedAt,
	)
	if c, ok := violatedUniqueConstraint(err); ok {
		switch c {
		case activePassengerTripIndex:
			return repository.ErrConflict
		case tripCodeKey:
			return repository.ErrDuplicateCode
		}
	}

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, id)
}

// GetByCode retrieves a trip by its display code.
func (r *TripRepository) GetByCode(ctx context.Context, code string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE code = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, code)
}

// List retrieves trips matching the filter, newest first.
func (r *TripRepository) List(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	filter = filter.Normalize()

	conds := []string{"deleted_at IS NULL"}
	var args []any
	where := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		where("status = $%d", filter.Status)
	}
	if filter.PassengerID != "" {
		where("passenger_id = $%d", filter.PassengerID)
	}
	if filter.DriverID != "" {
		where("driver_id = $%d", filter.DriverID)
	}
	if !filter.From.IsZero() {
		where("requested_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		where("requested_at <= $%d", filter.To)
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM trips WHERE %s ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`,
		tripColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// GetActiveByPassengerID retrieves the passenger's non-terminal trip.
// Returns nil if no active trip exists.
func (r *TripRepository) GetActiveByPassengerID(ctx context.Context, passengerID string) (*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE passenger_id = $1 AND status = ANY($2) AND deleted_at IS NULL
		LIMIT 1
	`
	return r.getActive(ctx, query, passengerID, statusArray(domain.ActiveTripStatuses))
}

// GetActiveByDriverID retrieves the trip currently occupying the driver.
// Returns nil if no active trip exists.
func (r *TripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE driver_id = $1 AND status = ANY($2) AND deleted_at IS NULL
		LIMIT 1
	`
	return r.getActive(ctx, query, driverID, statusArray(domain.DriverActiveTripStatuses))
}

// UpdateTransition writes a status change guarded by the previous status and version.
func (r *TripRepository) UpdateTransition(ctx context.Context, trip *domain.Trip, fromStatus domain.TripStatus, fromVersion int64) error {
	query := `
		UPDATE trips
		SET driver_id = $1, vehicle_id = $2, status = $3, status_version = $4,
		    final_price = $5, distance_km = $6, actual_duration = $7,
		    accepted_at = $8, driver_arrived_at = $9, started_at = $10, completed_at = $11, cancelled_at = $12,
		    cancellation_reason = $13, cancelled_by = $14, updated_by = $15, updated_at = $16
		WHERE id = $17 AND status = $18 AND status_version = $19 AND deleted_at IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(trip.DriverID),
		nullString(trip.VehicleID),
		trip.Status,
		trip.Version,
		nullFloat(trip.FinalPrice),
		nullFloat(trip.DistanceKm),
		nullInt(trip.ActualDuration),
		nullTime(trip.AcceptedAt),
		nullTime(trip.DriverArrivedAt),
		nullTime(trip.StartedAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
		trip.CancellationReason,
		trip.CancelledBy,
		trip.UpdatedBy,
		trip.UpdatedAt,
		trip.ID,
		fromStatus,
		fromVersion,
	)
	if c, ok := violatedUniqueConstraint(err); ok && c == activeDriverTripIndex {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}

	return checkRowsAffected(result, repository.ErrStaleState)
}

// SoftDelete hides a trip from all reads.
func (r *TripRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE trips SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.q.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, repository.ErrNotFound)
}

func (r *TripRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Trip, error) {
	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

func (r *TripRepository) getActive(ctx context.Context, query string, args ...any) (*domain.Trip, error) {
	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return trip, nil
}

func scanTrip(row scanner) (*domain.Trip, error) {
	var (
		trip                                          domain.Trip
		driverID, vehicleID                           sql.NullString
		finalPrice, distance                          sql.NullFloat64
		actualDuration                                sql.NullInt64
		acceptedAt, arrivedAt, startedAt, completedAt sql.NullTime
		cancelledAt                                   sql.NullTime
	)

	err := row.Scan(
		&trip.ID,
		&trip.Code,
		&trip.PassengerID,
		&driverID,
		&vehicleID,
		&trip.Origin.Address,
		&trip.Origin.Latitude,
		&trip.Origin.Longitude,
		&trip.Destination.Address,
		&trip.Destination.Latitude,
		&trip.Destination.Longitude,
		&trip.VehicleClass,
		&trip.Status,
		&trip.Version,
		&trip.EstimatedPrice,
		&finalPrice,
		&distance,
		&trip.EstimatedDuration,
		&actualDuration,
		&trip.PassengerNotes,
		&trip.RequestedAt,
		&acceptedAt,
		&arrivedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&trip.CancellationReason,
		&trip.CancelledBy,
		&trip.UpdatedBy,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.DriverID = driverID.String
	trip.VehicleID = vehicleID.String
	trip.FinalPrice = floatPtr(finalPrice)
	trip.DistanceKm = floatPtr(distance)
	trip.ActualDuration = intPtr(actualDuration)
	trip.AcceptedAt = timePtr(acceptedAt)
	trip.DriverArrivedAt = timePtr(arrivedAt)
	trip.StartedAt = timePtr(startedAt)
	trip.CompletedAt = timePtr(completedAt)
	trip.CancelledAt = timePtr(cancelledAt)

	return &trip, nil
}

func statusArray(statuses []domain.TripStatus) any {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
