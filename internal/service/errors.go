package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the services return for a rejected operation wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidTripState      = errors.New("invalid trip state")
	ErrResourceUnavailable   = errors.New("resource unavailable")
	ErrConflictingActiveTrip = errors.New("conflicting active trip")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrConfigurationMissing  = errors.New("configuration missing")
	ErrAlreadyExists         = errors.New("already exists")

	// ErrTimeout is returned when an operation exceeds its deadline. It is
	// transient and the caller may retry.
	ErrTimeout = errors.New("operation timed out")
)

var (
	// ErrTripNotFound is returned when a trip does not exist or is hidden.
	ErrTripNotFound = fmt.Errorf("trip %w", ErrNotFound)

	// ErrDriverNotFound is returned when a driver does not exist.
	ErrDriverNotFound = fmt.Errorf("driver %w", ErrNotFound)

	// ErrVehicleNotFound is returned when a vehicle does not exist.
	ErrVehicleNotFound = fmt.Errorf("vehicle %w", ErrNotFound)

	// ErrPassengerNotFound is returned when a passenger does not exist.
	ErrPassengerNotFound = fmt.Errorf("passenger %w", ErrNotFound)

	// ErrPaymentNotFound is returned when a trip has no payment record.
	ErrPaymentNotFound = fmt.Errorf("payment %w", ErrNotFound)

	// ErrRatingNotFound is returned when a trip has not been rated.
	ErrRatingNotFound = fmt.Errorf("rating %w", ErrNotFound)

	// ErrPricingRuleNotFound is returned when a pricing rule does not exist.
	ErrPricingRuleNotFound = fmt.Errorf("pricing rule %w", ErrNotFound)
)

var (
	// ErrTripNotCompleted is returned when rating or paying a trip that is not completed.
	ErrTripNotCompleted = fmt.Errorf("%w: trip is not completed", ErrInvalidTripState)

	// ErrTripNotTrackable is returned for location updates outside ACCEPTED, DRIVER_ARRIVED and IN_PROGRESS.
	ErrTripNotTrackable = fmt.Errorf("%w: trip does not accept location updates", ErrInvalidTripState)

	// ErrTripLocked is returned when another driver is accepting the same trip.
	ErrTripLocked = fmt.Errorf("%w: trip is being accepted by another driver", ErrInvalidTripState)

	// ErrTripChanged is returned when the trip changed between read and write.
	ErrTripChanged = fmt.Errorf("%w: trip changed concurrently", ErrInvalidTripState)
)

var (
	ErrDriverUnavailable = fmt.Errorf("%w: driver is not approved or offline", ErrResourceUnavailable)
	ErrVehicleInvalid    = fmt.Errorf("%w: vehicle is not active, verified and owned by the driver", ErrResourceUnavailable)
	ErrNoDriverAvailable = fmt.Errorf("%w: no driver available", ErrResourceUnavailable)

	ErrPassengerHasActiveTrip = fmt.Errorf("%w: passenger already has an active trip", ErrConflictingActiveTrip)
	ErrDriverHasActiveTrip    = fmt.Errorf("%w: driver already has an active trip", ErrConflictingActiveTrip)

	ErrPaymentAlreadyExists    = fmt.Errorf("%w: payment already recorded for trip", ErrAlreadyExists)
	ErrActivePricingRuleExists = fmt.Errorf("%w: vehicle class already has an active pricing rule", ErrAlreadyExists)

	ErrNoPricingConfigured = fmt.Errorf("%w: no active pricing for vehicle class", ErrConfigurationMissing)
)

var (
	ErrInvalidTripID        = fmt.Errorf("%w: trip id is required", ErrInvalidArgument)
	ErrInvalidPassengerID   = fmt.Errorf("%w: passenger id is required", ErrInvalidArgument)
	ErrInvalidDriverID      = fmt.Errorf("%w: driver id is required", ErrInvalidArgument)
	ErrInvalidTripStatus    = fmt.Errorf("%w: unknown trip status", ErrInvalidArgument)
	ErrInvalidLocation      = fmt.Errorf("%w: coordinates out of range", ErrInvalidArgument)
	ErrInvalidVehicleClass  = fmt.Errorf("%w: unknown vehicle class", ErrInvalidArgument)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: unknown payment method", ErrInvalidArgument)
	ErrInvalidPaymentAmount = fmt.Errorf("%w: payment amount must be positive", ErrInvalidArgument)
	ErrInvalidRatingRole    = fmt.Errorf("%w: rating role must be PASSENGER or DRIVER", ErrInvalidArgument)
	ErrRatingOutOfRange     = fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidArgument)
	ErrInvalidPricingRule   = fmt.Errorf("%w: prices must not be negative", ErrInvalidArgument)
	ErrNegativeFareInput    = fmt.Errorf("%w: distance and duration must not be negative", ErrInvalidArgument)
)
