package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/logging"
	"ridehail/internal/repository"
)

// PaymentService records how a completed trip was paid. Charging is
// handled outside the service; a payment here is a flag and a reference.
type PaymentService struct {
	tx            repository.Transactor
	repos         repository.Repositories
	notifications *NotificationService
	timeout       time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	tx repository.Transactor,
	repos repository.Repositories,
	notifications *NotificationService,
	timeout time.Duration,
	log logrus.FieldLogger,
) *PaymentService {
	return &PaymentService{
		tx:            tx,
		repos:         repos,
		notifications: notifications,
		timeout:       timeout,
		log:           log,
		now:           time.Now,
	}
}

// RecordPaymentRequest contains the parameters for recording a payment.
type RecordPaymentRequest struct {
	TripID    string
	Amount    float64
	Method    domain.PaymentMethod
	Reference string
}

// RecordPayment creates the single, unpaid payment record of a completed trip.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*domain.TripPayment, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}
	if !req.Method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	payment := &domain.TripPayment{
		ID:        uuid.New().String(),
		TripID:    req.TripID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var trip *domain.Trip
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		trip, err = r.Trips.GetByID(ctx, req.TripID)
		if err != nil {
			return notFound(err, ErrTripNotFound)
		}
		if trip.Status != domain.TripStatusCompleted {
			return ErrTripNotCompleted
		}

		if err := r.Payments.Create(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrPaymentAlreadyExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"amount":  payment.Amount,
		"method":  payment.Method,
	}).Info("payment recorded")
	if s.notifications != nil {
		s.notifications.NotifyPaymentUpdated(ctx, trip, payment)
	}
	return payment, nil
}

// GetPayment retrieves the payment of a trip.
func (s *PaymentService) GetPayment(ctx context.Context, tripID string) (*domain.TripPayment, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repos.Trips.GetByID(ctx, tripID); err != nil {
		return nil, classify(notFound(err, ErrTripNotFound))
	}

	payment, err := s.repos.Payments.GetByTripID(ctx, tripID)
	if err != nil {
		return nil, classify(notFound(err, ErrPaymentNotFound))
	}
	return payment, nil
}

// UpdatePaymentStatus sets the paid flag. Repeating the same call is harmless
// and PaidAt keeps the time of the first transition to paid.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, tripID string, isPaid bool, reference string) (*domain.TripPayment, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		trip    *domain.Trip
		payment *domain.TripPayment
	)
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		trip, err = r.Trips.GetByID(ctx, tripID)
		if err != nil {
			return notFound(err, ErrTripNotFound)
		}

		payment, err = r.Payments.GetByTripID(ctx, tripID)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}

		payment.SetPaid(isPaid, reference, s.now())
		return notFound(r.Payments.Update(ctx, payment), ErrPaymentNotFound)
	})
	if err != nil {
		return nil, classify(err)
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"trip_id": tripID,
		"is_paid": payment.IsPaid,
	}).Info("payment status updated")
	if s.notifications != nil {
		s.notifications.NotifyPaymentUpdated(ctx, trip, payment)
	}
	return payment, nil
}
