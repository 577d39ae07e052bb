package domain

import (
	"errors"
	"time"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested     TripStatus = "REQUESTED"
	TripStatusAccepted      TripStatus = "ACCEPTED"
	TripStatusDriverArrived TripStatus = "DRIVER_ARRIVED"
	TripStatusInProgress    TripStatus = "IN_PROGRESS"
	TripStatusCompleted     TripStatus = "COMPLETED"
	TripStatusCancelled     TripStatus = "CANCELLED"
	TripStatusFailed        TripStatus = "FAILED"
)

// ErrInvalidTransition is returned when a trip cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid trip status transition")

var transitions = map[TripStatus][]TripStatus{
	TripStatusRequested:     {TripStatusAccepted, TripStatusCancelled, TripStatusFailed},
	TripStatusAccepted:      {TripStatusDriverArrived, TripStatusCancelled, TripStatusFailed},
	TripStatusDriverArrived: {TripStatusInProgress, TripStatusCancelled, TripStatusFailed},
	TripStatusInProgress:    {TripStatusCompleted, TripStatusCancelled, TripStatusFailed},
}

// ActiveTripStatuses lists the non-terminal statuses.
var ActiveTripStatuses = []TripStatus{
	TripStatusRequested,
	TripStatusAccepted,
	TripStatusDriverArrived,
	TripStatusInProgress,
}

// DriverActiveTripStatuses lists the statuses in which a trip occupies its driver.
var DriverActiveTripStatuses = []TripStatus{
	TripStatusAccepted,
	TripStatusDriverArrived,
	TripStatusInProgress,
}

// Valid reports whether s is a known status.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusRequested, TripStatusAccepted, TripStatusDriverArrived, TripStatusInProgress,
		TripStatusCompleted, TripStatusCancelled, TripStatusFailed:
		return true
	}
	return false
}

// IsActive reports whether the trip is not yet in a terminal state.
func (s TripStatus) IsActive() bool {
	return s.Valid() && !s.IsTerminal()
}

// IsTerminal reports whether no further transitions are allowed.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled || s == TripStatusFailed
}

// OccupiesDriver reports whether a trip in this status counts as the driver's active trip.
func (s TripStatus) OccupiesDriver() bool {
	return s == TripStatusAccepted || s == TripStatusDriverArrived || s == TripStatusInProgress
}

// TracksLocation reports whether location pings are accepted in this status.
func (s TripStatus) TracksLocation() bool {
	return s.OccupiesDriver()
}

// CanTransition reports whether a trip may move from one status to another.
func CanTransition(from, to TripStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Place is an addressed coordinate.
type Place struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Trip is the aggregate for one ride from request to a terminal status.
type Trip struct {
	ID          string
	Code        string
	PassengerID string
	DriverID    string // empty until accepted
	VehicleID   string // empty until accepted

	Origin      Place
	Destination Place

	VehicleClass VehicleClass
	Status       TripStatus
	Version      int64 // bumped on every status change

	EstimatedPrice    float64
	FinalPrice        *float64
	DistanceKm        *float64
	EstimatedDuration int // minutes
	ActualDuration    *int

	PassengerNotes string

	RequestedAt     time.Time
	AcceptedAt      *time.Time
	DriverArrivedAt *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time

	CancellationReason string
	CancelledBy        string
	UpdatedBy          string
	UpdatedAt          time.Time
}

// Accept assigns the driver and vehicle and moves the trip to ACCEPTED.
func (t *Trip) Accept(driverID, vehicleID string, at time.Time) error {
	if err := t.advance(TripStatusAccepted, at); err != nil {
		return err
	}
	t.DriverID = driverID
	t.VehicleID = vehicleID
	t.AcceptedAt = &at
	return nil
}

// MarkArrived records the driver's arrival at the pickup point.
func (t *Trip) MarkArrived(at time.Time) error {
	if err := t.advance(TripStatusDriverArrived, at); err != nil {
		return err
	}
	t.DriverArrivedAt = &at
	return nil
}

// Start moves the trip to IN_PROGRESS.
func (t *Trip) Start(at time.Time) error {
	if err := t.advance(TripStatusInProgress, at); err != nil {
		return err
	}
	t.StartedAt = &at
	return nil
}

// Complete closes the trip with its measured distance, duration and final price.
func (t *Trip) Complete(distanceKm float64, durationMinutes int, finalPrice float64, at time.Time) error {
	if err := t.advance(TripStatusCompleted, at); err != nil {
		return err
	}
	if t.DistanceKm == nil {
		t.DistanceKm = &distanceKm
	}
	t.ActualDuration = &durationMinutes
	t.FinalPrice = &finalPrice
	t.CompletedAt = &at
	return nil
}

// Cancel moves an active trip to CANCELLED.
func (t *Trip) Cancel(by, reason string, at time.Time) error {
	if err := t.advance(TripStatusCancelled, at); err != nil {
		return err
	}
	t.CancelledAt = &at
	t.CancelledBy = by
	t.CancellationReason = reason
	return nil
}

// Fail moves an active trip to FAILED.
func (t *Trip) Fail(reason string, at time.Time) error {
	if err := t.advance(TripStatusFailed, at); err != nil {
		return err
	}
	t.CancellationReason = reason
	return nil
}

// ElapsedMinutes returns whole minutes since the trip started.
func (t *Trip) ElapsedMinutes(now time.Time) int {
	if t.StartedAt == nil || now.Before(*t.StartedAt) {
		return 0
	}
	return int(now.Sub(*t.StartedAt).Minutes())
}

func (t *Trip) advance(to TripStatus, at time.Time) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}
	t.Status = to
	t.Version++
	t.UpdatedAt = at
	return nil
}

// TripFilter narrows trip listings. Zero values mean no filter.
type TripFilter struct {
	Status      TripStatus
	PassengerID string
	DriverID    string
	From        time.Time
	To          time.Time
	Page        int
	PageSize    int
}

// Normalize clamps paging to sane defaults.
func (f TripFilter) Normalize() TripFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// Offset returns the row offset for the filter's page.
func (f TripFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
