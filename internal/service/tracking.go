package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/geo"
	"ridehail/internal/logging"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// TrackingService records the GPS trail of trips.
type TrackingService struct {
	tx            repository.Transactor
	repos         repository.Repositories
	positions     redis.LocationStoreInterface
	notifications *NotificationService
	timeout       time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewTrackingService creates a new TrackingService. positions may be nil.
func NewTrackingService(
	tx repository.Transactor,
	repos repository.Repositories,
	positions redis.LocationStoreInterface,
	notifications *NotificationService,
	timeout time.Duration,
	log logrus.FieldLogger,
) *TrackingService {
	return &TrackingService{
		tx:            tx,
		repos:         repos,
		positions:     positions,
		notifications: notifications,
		timeout:       timeout,
		log:           log,
		now:           time.Now,
	}
}

// AddLocationRequest contains one GPS ping of a trip.
type AddLocationRequest struct {
	TripID    string
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
}

// AddTripLocation appends a ping while the trip is ACCEPTED, DRIVER_ARRIVED or IN_PROGRESS
// and forwards it to the passenger.
func (s *TrackingService) AddTripLocation(ctx context.Context, req AddLocationRequest) (*domain.TripLocation, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, ErrInvalidLocation
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	loc := &domain.TripLocation{
		ID:        uuid.New().String(),
		TripID:    req.TripID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Speed:     req.Speed,
		Heading:   req.Heading,
		Timestamp: s.now(),
	}

	var trip *domain.Trip
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		trip, err = r.Trips.GetByID(ctx, req.TripID)
		if err != nil {
			return notFound(err, ErrTripNotFound)
		}
		if !trip.Status.TracksLocation() {
			return ErrTripNotTrackable
		}
		return r.Locations.Append(ctx, loc)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.trackDriver(ctx, trip.DriverID, loc)
	if s.notifications != nil {
		s.notifications.NotifyLocation(ctx, trip, loc)
	}
	return loc, nil
}

// trackDriver keeps the matching index close to the trip trail.
func (s *TrackingService) trackDriver(ctx context.Context, driverID string, loc *domain.TripLocation) {
	if s.positions == nil || driverID == "" {
		return
	}
	if err := s.positions.UpdateLocation(ctx, driverID, loc.Latitude, loc.Longitude); err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
			"trip_id":   loc.TripID,
			"driver_id": driverID,
		}).Warn("driver position update failed")
	}
}

// ListTripLocations returns the trail of a trip ordered by timestamp.
func (s *TrackingService) ListTripLocations(ctx context.Context, tripID string) ([]*domain.TripLocation, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repos.Trips.GetByID(ctx, tripID); err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}

	locations, err := s.repos.Locations.ListByTripID(ctx, tripID)
	return locations, classify(err)
}
