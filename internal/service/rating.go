package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/logging"
	"ridehail/internal/repository"
)

// RatingService records trip ratings and keeps party averages current.
type RatingService struct {
	tx            repository.Transactor
	repos         repository.Repositories
	notifications *NotificationService
	timeout       time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewRatingService creates a new RatingService.
func NewRatingService(
	tx repository.Transactor,
	repos repository.Repositories,
	notifications *NotificationService,
	timeout time.Duration,
	log logrus.FieldLogger,
) *RatingService {
	return &RatingService{
		tx:            tx,
		repos:         repos,
		notifications: notifications,
		timeout:       timeout,
		log:           log,
		now:           time.Now,
	}
}

// SubmitRatingRequest contains one party's rating of a trip.
type SubmitRatingRequest struct {
	TripID  string
	Role    domain.RatingRole
	Score   int
	Comment string
}

// SubmitRating sets one half of a completed trip's rating. A second submission
// from the same role replaces the first.
func (s *RatingService) SubmitRating(ctx context.Context, req SubmitRatingRequest) (*domain.TripRating, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRatingRole
	}
	if !domain.ValidRating(req.Score) {
		return nil, ErrRatingOutOfRange
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		trip    *domain.Trip
		rating  *domain.TripRating
		ratedID string
		average float64
	)
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		trip, err = r.Trips.GetByID(ctx, req.TripID)
		if err != nil {
			return notFound(err, ErrTripNotFound)
		}
		if trip.Status != domain.TripStatusCompleted {
			return ErrTripNotCompleted
		}

		now := s.now()
		half := &domain.TripRating{ID: uuid.New().String(), TripID: trip.ID, CreatedAt: now}
		half.Set(req.Role, req.Score, req.Comment, now)
		if err := r.Ratings.UpsertHalf(ctx, half, req.Role); err != nil {
			return err
		}
		if rating, err = r.Ratings.GetByTripID(ctx, trip.ID); err != nil {
			return err
		}

		ratedID, average, err = s.refreshAverage(ctx, r, trip, req.Role)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"trip_id":  trip.ID,
		"role":     req.Role,
		"score":    req.Score,
		"rated_id": ratedID,
		"average":  average,
	}).Info("trip rated")
	if s.notifications != nil {
		s.notifications.NotifyRatingReceived(ctx, trip, ratedID, req.Score)
	}
	return rating, nil
}

// refreshAverage recomputes the rated party's mean over all their completed trips.
func (s *RatingService) refreshAverage(ctx context.Context, r repository.Repositories, trip *domain.Trip, role domain.RatingRole) (string, float64, error) {
	if role == domain.RatingRolePassenger {
		avg, n, err := r.Ratings.AverageForDriver(ctx, trip.DriverID)
		if err != nil || n == 0 {
			return trip.DriverID, 0, err
		}
		avg = fare.Round2(avg)
		return trip.DriverID, avg, notFound(r.Drivers.UpdateRating(ctx, trip.DriverID, avg), ErrDriverNotFound)
	}

	avg, n, err := r.Ratings.AverageForPassenger(ctx, trip.PassengerID)
	if err != nil || n == 0 {
		return trip.PassengerID, 0, err
	}
	avg = fare.Round2(avg)
	return trip.PassengerID, avg, notFound(r.Passengers.UpdateRating(ctx, trip.PassengerID, avg), ErrPassengerNotFound)
}

// GetRating retrieves the rating of a trip.
func (s *RatingService) GetRating(ctx context.Context, tripID string) (*domain.TripRating, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repos.Trips.GetByID(ctx, tripID); err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}

	rating, err := s.repos.Ratings.GetByTripID(ctx, tripID)
	if err != nil {
		return nil, classify(notFound(err, ErrRatingNotFound))
	}
	return rating, nil
}
