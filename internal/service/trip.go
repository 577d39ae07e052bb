package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/geo"
	"ridehail/internal/logging"
	"ridehail/internal/metrics"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// TripConfig holds the tunables of TripService.
type TripConfig struct {
	RequestTimeout  time.Duration
	AverageSpeedKmh float64
	AcceptLockTTL   time.Duration
}

// TripService drives trips through their lifecycle.
type TripService struct {
	tx            repository.Transactor
	repos         repository.Repositories
	fares         *fare.Engine
	locks         redis.LockStoreInterface
	notifications *NotificationService
	cfg           TripConfig
	log           logrus.FieldLogger
	now           func() time.Time
}

// TripOption configures optional TripService collaborators.
type TripOption func(*TripService)

// WithLockStore enables the accept lock fast path.
func WithLockStore(locks redis.LockStoreInterface) TripOption {
	return func(s *TripService) { s.locks = locks }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TripOption {
	return func(s *TripService) { s.now = now }
}

// NewTripService creates a new TripService.
func NewTripService(
	tx repository.Transactor,
	repos repository.Repositories,
	fares *fare.Engine,
	notifications *NotificationService,
	cfg TripConfig,
	log logrus.FieldLogger,
	opts ...TripOption,
) *TripService {
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = fare.DefaultAverageSpeedKmh
	}
	if cfg.AcceptLockTTL <= 0 {
		cfg.AcceptLockTTL = 10 * time.Second
	}
	s := &TripService{
		tx:            tx,
		repos:         repos,
		fares:         fares,
		notifications: notifications,
		cfg:           cfg,
		log:           log,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestTripRequest contains the parameters for requesting a trip.
type RequestTripRequest struct {
	PassengerID  string
	Origin       domain.Place
	Destination  domain.Place
	VehicleClass domain.VehicleClass
	Notes        string
	ActorID      string
}

// FareQuote is a price estimate for a route.
type FareQuote struct {
	VehicleClass      domain.VehicleClass `json:"vehicleClass"`
	DistanceKm        float64             `json:"distanceKm"`
	EstimatedDuration int                 `json:"estimatedDuration"`
	EstimatedPrice    float64             `json:"estimatedPrice"`
}

// EstimateFare quotes a route without creating a trip.
func (s *TripService) EstimateFare(ctx context.Context, origin, destination domain.Place, class domain.VehicleClass) (*FareQuote, error) {
	if !class.Valid() {
		return nil, ErrInvalidVehicleClass
	}
	if err := validatePlaces(origin, destination); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	quote, err := s.quote(ctx, origin, destination, class)
	return quote, classify(err)
}

func (s *TripService) quote(ctx context.Context, origin, destination domain.Place, class domain.VehicleClass) (*FareQuote, error) {
	distance := geo.Distance(placePoint(origin), placePoint(destination))
	duration := fare.EstimateDurationMinutes(distance, s.cfg.AverageSpeedKmh)

	price, err := s.fares.CalculatePrice(ctx, class, distance, duration)
	if err != nil {
		return nil, fareError(err)
	}

	return &FareQuote{
		VehicleClass:      class,
		DistanceKm:        distance,
		EstimatedDuration: duration,
		EstimatedPrice:    price,
	}, nil
}

// RequestTrip creates a REQUESTED trip for a passenger with no other active trip.
func (s *TripService) RequestTrip(ctx context.Context, req RequestTripRequest) (*domain.Trip, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if !req.VehicleClass.Valid() {
		return nil, ErrInvalidVehicleClass
	}
	if err := validatePlaces(req.Origin, req.Destination); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	log := logging.FromContext(ctx, s.log).WithField("passenger_id", req.PassengerID)

	// The quote needs no lock; a missing rate card fails before anything is written.
	quote, err := s.quote(ctx, req.Origin, req.Destination, req.VehicleClass)
	if err != nil {
		s.reject("request", log, err)
		return nil, classify(err)
	}

	now := s.now()
	trip := &domain.Trip{
		ID:                uuid.New().String(),
		Code:              newTripCode(now),
		PassengerID:       req.PassengerID,
		Origin:            req.Origin,
		Destination:       req.Destination,
		VehicleClass:      req.VehicleClass,
		Status:            domain.TripStatusRequested,
		Version:           1,
		EstimatedPrice:    quote.EstimatedPrice,
		EstimatedDuration: quote.EstimatedDuration,
		PassengerNotes:    req.Notes,
		RequestedAt:       now,
		UpdatedBy:         actorOr(req.ActorID, req.PassengerID),
		UpdatedAt:         now,
	}

	create := func(r repository.Repositories) error {
		if _, err := r.Passengers.GetByID(ctx, req.PassengerID); err != nil {
			return notFound(err, ErrPassengerNotFound)
		}

		active, err := r.Trips.GetActiveByPassengerID(ctx, req.PassengerID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrPassengerHasActiveTrip
		}

		if err := r.Trips.Create(ctx, trip); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrPassengerHasActiveTrip
			}
			return err
		}
		return nil
	}
	for attempt := 0; attempt < maxTripCodeAttempts; attempt++ {
		err = s.tx.WithinTx(ctx, create)
		if !errors.Is(err, repository.ErrDuplicateCode) {
			break
		}
		trip.Code = newTripCode(now)
	}
	if err != nil {
		err = classify(err)
		s.reject("request", log, err)
		return nil, err
	}

	metrics.TripTransitions.WithLabelValues(string(trip.Status)).Inc()
	metrics.FareAmount.WithLabelValues("estimate", string(trip.VehicleClass)).Observe(trip.EstimatedPrice)
	log.WithFields(logrus.Fields{
		"trip_id":         trip.ID,
		"trip_code":       trip.Code,
		"estimated_price": trip.EstimatedPrice,
	}).Info("trip requested")

	s.notify(ctx, func(ctx context.Context) {
		s.notifications.NotifyTripRequested(ctx, trip)
		s.notifications.NotifyTripUpdate(ctx, trip)
	})
	return trip, nil
}

// AcceptTripRequest contains the parameters for accepting a trip.
// An empty VehicleID selects one of the driver's usable vehicles.
type AcceptTripRequest struct {
	TripID    string
	DriverID  string
	VehicleID string
	ActorID   string
}

// AcceptTrip assigns a driver and vehicle to a REQUESTED trip. Of several
// concurrent accepts for one trip exactly one succeeds.
func (s *TripService) AcceptTrip(ctx context.Context, req AcceptTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	if s.locks != nil {
		release, err := s.acquireAcceptLock(ctx, req.TripID, req.DriverID)
		if err != nil {
			s.reject("accept", logging.FromContext(ctx, s.log).WithField("trip_id", req.TripID), err)
			return nil, err
		}
		defer release()
	}

	return s.transition(ctx, "accept", req.TripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		if trip.Status != domain.TripStatusRequested {
			return invalidState(trip.Status)
		}

		driver, err := r.Drivers.GetByID(ctx, req.DriverID)
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}
		if !driver.Available() {
			return ErrDriverUnavailable
		}

		active, err := r.Trips.GetActiveByDriverID(ctx, driver.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDriverHasActiveTrip
		}

		vehicle, err := s.resolveVehicle(ctx, r, driver.ID, req.VehicleID, trip.VehicleClass)
		if err != nil {
			return err
		}

		trip.UpdatedBy = actorOr(req.ActorID, driver.ID)
		return trip.Accept(driver.ID, vehicle.ID, now)
	})
}

// acquireAcceptLock takes the short redis lock that turns away a second driver
// before it reaches the database. The conditional update stays authoritative,
// so a redis failure only skips the fast path.
func (s *TripService) acquireAcceptLock(ctx context.Context, tripID, driverID string) (func(), error) {
	ok, err := s.locks.AcquireTripLock(ctx, tripID, driverID, s.cfg.AcceptLockTTL)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithField("trip_id", tripID).Warn("accept lock unavailable")
		return func() {}, nil
	}
	if !ok {
		return nil, ErrTripLocked
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.locks.ReleaseTripLock(releaseCtx, tripID, driverID); err != nil {
			logging.FromContext(ctx, s.log).WithError(err).WithField("trip_id", tripID).Warn("accept lock release failed")
		}
	}, nil
}

func (s *TripService) resolveVehicle(ctx context.Context, r repository.Repositories, driverID, vehicleID string, class domain.VehicleClass) (*domain.Vehicle, error) {
	if vehicleID == "" {
		vehicles, err := r.Vehicles.ListByDriverID(ctx, driverID)
		if err != nil {
			return nil, err
		}
		vehicle := pickVehicle(vehicles, class)
		if vehicle == nil {
			return nil, ErrVehicleInvalid
		}
		return vehicle, nil
	}

	vehicle, err := r.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, notFound(err, ErrVehicleNotFound)
	}
	if vehicle.DriverID != driverID || !vehicle.Usable() {
		return nil, ErrVehicleInvalid
	}
	return vehicle, nil
}

// pickVehicle prefers a usable vehicle of the requested class, else any usable vehicle.
func pickVehicle(vehicles []*domain.Vehicle, class domain.VehicleClass) *domain.Vehicle {
	var fallback *domain.Vehicle
	for _, v := range vehicles {
		if !v.Usable() {
			continue
		}
		if v.Class == class {
			return v
		}
		if fallback == nil {
			fallback = v
		}
	}
	return fallback
}

// MarkDriverArrived records the driver's arrival at the pickup point.
func (s *TripService) MarkDriverArrived(ctx context.Context, tripID, actorID string) (*domain.Trip, error) {
	return s.transition(ctx, "arrive", tripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		trip.UpdatedBy = actorOr(actorID, trip.DriverID)
		return trip.MarkArrived(now)
	})
}

// StartTrip moves a DRIVER_ARRIVED trip to IN_PROGRESS.
func (s *TripService) StartTrip(ctx context.Context, tripID, actorID string) (*domain.Trip, error) {
	return s.transition(ctx, "start", tripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		trip.UpdatedBy = actorOr(actorID, trip.DriverID)
		return trip.Start(now)
	})
}

// CompleteTripRequest contains the parameters for completing a trip.
type CompleteTripRequest struct {
	TripID    string
	Latitude  float64
	Longitude float64
	ActorID   string
}

// CompleteTrip closes an IN_PROGRESS trip: it records the drop-off position,
// prices the trip from distance and elapsed minutes and credits both parties.
func (s *TripService) CompleteTrip(ctx context.Context, req CompleteTripRequest) (*domain.Trip, error) {
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, ErrInvalidLocation
	}

	trip, err := s.transition(ctx, "complete", req.TripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		if trip.Status != domain.TripStatusInProgress {
			return invalidState(trip.Status)
		}

		distance := geo.Distance(placePoint(trip.Origin), placePoint(trip.Destination))
		if trip.DistanceKm != nil {
			distance = *trip.DistanceKm
		}
		duration := trip.ElapsedMinutes(now)

		price, err := s.fares.CalculatePrice(ctx, trip.VehicleClass, distance, duration)
		if err != nil {
			return fareError(err)
		}

		if err := r.Locations.Append(ctx, &domain.TripLocation{
			ID:        uuid.New().String(),
			TripID:    trip.ID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Timestamp: now,
		}); err != nil {
			return err
		}

		trip.UpdatedBy = actorOr(req.ActorID, trip.DriverID)
		if err := trip.Complete(distance, duration, price, now); err != nil {
			return err
		}

		if err := r.Passengers.IncrementTotalTrips(ctx, trip.PassengerID); err != nil {
			return notFound(err, ErrPassengerNotFound)
		}
		if err := r.Drivers.IncrementTotalTrips(ctx, trip.DriverID); err != nil {
			return notFound(err, ErrDriverNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FareAmount.WithLabelValues("final", string(trip.VehicleClass)).Observe(*trip.FinalPrice)
	return trip, nil
}

// CancelTrip moves an active trip to CANCELLED. Price fields are left untouched.
func (s *TripService) CancelTrip(ctx context.Context, tripID, cancelledBy, reason string) (*domain.Trip, error) {
	return s.transition(ctx, "cancel", tripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		trip.UpdatedBy = cancelledBy
		return trip.Cancel(cancelledBy, reason, now)
	})
}

// FailTrip moves an active trip to FAILED, for operator or system aborts.
func (s *TripService) FailTrip(ctx context.Context, tripID, actorID, reason string) (*domain.Trip, error) {
	return s.transition(ctx, "fail", tripID, func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error {
		trip.UpdatedBy = actorID
		return trip.Fail(reason, now)
	})
}

type applyFunc func(ctx context.Context, r repository.Repositories, trip *domain.Trip, now time.Time) error

// transition loads a trip, applies fn and writes the result conditionally on
// the status and version that were read, all in one transaction. Listeners
// are told only after commit.
func (s *TripService) transition(ctx context.Context, op, tripID string, fn applyFunc) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	log := logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"trip_id": tripID, "operation": op})

	var updated *domain.Trip
	var from domain.TripStatus
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		trip, err := r.Trips.GetByID(ctx, tripID)
		if err != nil {
			return notFound(err, ErrTripNotFound)
		}

		from = trip.Status
		fromVersion := trip.Version
		if err := fn(ctx, r, trip, s.now()); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return invalidState(from)
			}
			return err
		}

		if err := r.Trips.UpdateTransition(ctx, trip, from, fromVersion); err != nil {
			switch {
			case errors.Is(err, repository.ErrStaleState):
				return ErrTripChanged
			case errors.Is(err, repository.ErrConflict):
				return ErrDriverHasActiveTrip
			case errors.Is(err, repository.ErrNotFound):
				return ErrTripNotFound
			}
			return err
		}

		updated = trip
		return nil
	})
	if err != nil {
		err = classify(err)
		s.reject(op, log, err)
		return nil, err
	}

	metrics.TripTransitions.WithLabelValues(string(updated.Status)).Inc()
	log.WithFields(logrus.Fields{
		"from":      from,
		"status":    updated.Status,
		"driver_id": updated.DriverID,
	}).Info("trip status changed")

	s.notify(ctx, func(ctx context.Context) {
		s.notifications.NotifyTripUpdate(ctx, updated)
	})
	return updated, nil
}

func (s *TripService) reject(op string, log logrus.FieldLogger, err error) {
	metrics.TripTransitionRejections.WithLabelValues(op).Inc()
	if isRejection(err) {
		log.WithError(err).Info("trip operation rejected")
		return
	}
	log.WithError(err).Error("trip operation failed")
}

func (s *TripService) notify(ctx context.Context, fn func(ctx context.Context)) {
	if s.notifications == nil {
		return
	}
	fn(ctx)
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}
	return trip, nil
}

// GetTripByCode retrieves a trip by its display code.
func (s *TripService) GetTripByCode(ctx context.Context, code string) (*domain.Trip, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	trip, err := s.repos.Trips.GetByCode(ctx, code)
	if err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}
	return trip, nil
}

// ListTrips retrieves a page of trips matching the filter.
func (s *TripService) ListTrips(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidTripStatus
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	trips, err := s.repos.Trips.List(ctx, filter.Normalize())
	return trips, classify(err)
}

// CalculateTripPrice prices an existing trip: actual duration once completed,
// the estimate before that.
func (s *TripService) CalculateTripPrice(ctx context.Context, tripID string) (float64, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	duration := trip.EstimatedDuration
	if trip.ActualDuration != nil {
		duration = *trip.ActualDuration
	}
	distance := geo.Distance(placePoint(trip.Origin), placePoint(trip.Destination))
	if trip.DistanceKm != nil {
		distance = *trip.DistanceKm
	}

	price, err := s.fares.CalculatePrice(ctx, trip.VehicleClass, distance, duration)
	if err != nil {
		return 0, classify(fareError(err))
	}
	return price, nil
}

// DeleteTrip hides a trip from every read. The trip keeps its status.
func (s *TripService) DeleteTrip(ctx context.Context, tripID string) error {
	if tripID == "" {
		return ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.repos.Trips.SoftDelete(ctx, tripID); err != nil {
		return classify(notFound(err, ErrTripNotFound))
	}
	logging.FromContext(ctx, s.log).WithField("trip_id", tripID).Info("trip hidden")
	return nil
}

// isRejection reports whether err is a business rejection rather than a fault.
func isRejection(err error) bool {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidTripState,
		ErrResourceUnavailable,
		ErrConflictingActiveTrip,
		ErrInvalidArgument,
		ErrAlreadyExists,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

const maxTripCodeAttempts = 3

// newTripCode builds a display code: T, the UTC request time and a random suffix.
func newTripCode(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return "T" + now.UTC().Format("060102150405") + strings.ToUpper(suffix)
}

func validatePlaces(places ...domain.Place) error {
	for _, p := range places {
		if !geo.ValidCoordinates(p.Latitude, p.Longitude) {
			return ErrInvalidLocation
		}
	}
	return nil
}

func placePoint(p domain.Place) geo.Point {
	return geo.Point{Lat: p.Latitude, Lon: p.Longitude}
}

func actorOr(actor, fallback string) string {
	if actor != "" {
		return actor
	}
	return fallback
}
