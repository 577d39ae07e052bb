package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/geo"
	"ridehail/internal/logging"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// DriverService handles driver availability.
type DriverService struct {
	positions redis.LocationStoreInterface
	drivers   repository.DriverRepository
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	positions redis.LocationStoreInterface,
	drivers repository.DriverRepository,
	timeout time.Duration,
	log logrus.FieldLogger,
) *DriverService {
	return &DriverService{
		positions: positions,
		drivers:   drivers,
		timeout:   timeout,
		log:       log,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID  string
	Latitude  float64
	Longitude float64
}

// UpdateDriverLocation stores a driver's position in the GEO index and marks the driver online.
func (s *DriverService) UpdateDriverLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return ErrInvalidLocation
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.drivers.GetByID(ctx, req.DriverID); err != nil {
		return classify(notFound(err, ErrDriverNotFound))
	}

	if err := s.positions.UpdateLocation(ctx, req.DriverID, req.Latitude, req.Longitude); err != nil {
		return classify(err)
	}

	if err := s.drivers.SetOnline(ctx, req.DriverID, true); err != nil {
		return classify(notFound(err, ErrDriverNotFound))
	}
	return nil
}

// SetDriverOffline marks a driver offline and drops them from the GEO index.
func (s *DriverService) SetDriverOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.drivers.SetOnline(ctx, driverID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDriverNotFound
		}
		return classify(err)
	}

	// Offline is already persisted; a stale index entry is filtered by FindDriver.
	if err := s.positions.RemoveLocation(ctx, driverID); err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithField("driver_id", driverID).Warn("driver position removal failed")
	}
	return nil
}
