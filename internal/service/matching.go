package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/logging"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

const (
	defaultSearchRadiusKm = 5.0
	defaultCandidateLimit = 20
	maxAssignAttempts     = 3
)

// MatchingConfig holds the search parameters of MatchingService.
type MatchingConfig struct {
	RadiusKm float64
	Limit    int
	Timeout  time.Duration
}

// MatchingService picks a driver for a requested trip. It is best effort: the
// first eligible driver wins, nearest first when positions are known.
type MatchingService struct {
	repos     repository.Repositories
	positions redis.LocationStoreInterface
	trips     *TripService
	cfg       MatchingConfig
	log       logrus.FieldLogger
}

// NewMatchingService creates a new MatchingService. positions may be nil.
func NewMatchingService(
	repos repository.Repositories,
	positions redis.LocationStoreInterface,
	trips *TripService,
	cfg MatchingConfig,
	log logrus.FieldLogger,
) *MatchingService {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = defaultSearchRadiusKm
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultCandidateLimit
	}
	return &MatchingService{
		repos:     repos,
		positions: positions,
		trips:     trips,
		cfg:       cfg,
		log:       log,
	}
}

// DriverMatch is a driver and vehicle able to serve a trip.
type DriverMatch struct {
	Driver     *domain.Driver
	Vehicle    *domain.Vehicle
	DistanceKm *float64 // nil when the driver was not found through the position index
}

// FindDriver returns an eligible driver for a REQUESTED trip.
func (s *MatchingService) FindDriver(ctx context.Context, tripID string) (*DriverMatch, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}
	if trip.Status != domain.TripStatusRequested {
		return nil, invalidState(trip.Status)
	}

	match, err := s.findDriver(ctx, trip, nil)
	return match, classify(err)
}

// AutoAssign finds a driver for the trip and accepts it on their behalf. A
// candidate lost to a concurrent assignment is skipped.
func (s *MatchingService) AutoAssign(ctx context.Context, tripID, actorID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	tried := make(map[string]bool)
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		trip, err := s.trips.GetTrip(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if trip.Status != domain.TripStatusRequested {
			return nil, invalidState(trip.Status)
		}

		findCtx, cancel := withTimeout(ctx, s.cfg.Timeout)
		match, err := s.findDriver(findCtx, trip, tried)
		cancel()
		if err != nil {
			return nil, classify(err)
		}

		accepted, err := s.trips.AcceptTrip(ctx, AcceptTripRequest{
			TripID:    tripID,
			DriverID:  match.Driver.ID,
			VehicleID: match.Vehicle.ID,
			ActorID:   actorID,
		})
		if err == nil {
			return accepted, nil
		}
		if !errors.Is(err, ErrConflictingActiveTrip) && !errors.Is(err, ErrResourceUnavailable) {
			return nil, err
		}

		logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
			"trip_id":   tripID,
			"driver_id": match.Driver.ID,
		}).Info("candidate driver lost, retrying")
		tried[match.Driver.ID] = true
	}
	return nil, ErrNoDriverAvailable
}

type candidate struct {
	driver     *domain.Driver
	distanceKm *float64
}

func (s *MatchingService) findDriver(ctx context.Context, trip *domain.Trip, skip map[string]bool) (*DriverMatch, error) {
	candidates, err := s.candidates(ctx, trip)
	if err != nil {
		return nil, err
	}

	var fallback *DriverMatch
	for _, c := range candidates {
		if skip[c.driver.ID] || !c.driver.Available() {
			continue
		}

		active, err := s.repos.Trips.GetActiveByDriverID(ctx, c.driver.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			continue
		}

		vehicles, err := s.repos.Vehicles.ListByDriverID(ctx, c.driver.ID)
		if err != nil {
			return nil, err
		}
		vehicle := pickVehicle(vehicles, trip.VehicleClass)
		if vehicle == nil {
			continue
		}

		match := &DriverMatch{Driver: c.driver, Vehicle: vehicle, DistanceKm: c.distanceKm}
		if vehicle.Class == trip.VehicleClass {
			return match, nil
		}
		if fallback == nil {
			fallback = match
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoDriverAvailable
}

// candidates lists nearby drivers from the position index, or every available
// driver when the index is absent, failing or empty.
func (s *MatchingService) candidates(ctx context.Context, trip *domain.Trip) ([]candidate, error) {
	if s.positions != nil {
		nearby, err := s.positions.FindNearbyDrivers(ctx, trip.Origin.Latitude, trip.Origin.Longitude, s.cfg.RadiusKm, s.cfg.Limit)
		if err != nil {
			logging.FromContext(ctx, s.log).WithError(err).WithField("trip_id", trip.ID).Warn("driver position search failed, using available drivers")
		}

		out := make([]candidate, 0, len(nearby))
		for _, pos := range nearby {
			driver, err := s.repos.Drivers.GetByID(ctx, pos.DriverID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			distance := pos.DistanceKm
			out = append(out, candidate{driver: driver, distanceKm: &distance})
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	drivers, err := s.repos.Drivers.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, candidate{driver: d})
	}
	return out, nil
}
