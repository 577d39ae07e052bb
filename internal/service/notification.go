package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/logging"
	"ridehail/internal/metrics"
	"ridehail/internal/realtime"
)

// NotificationType is the envelope type of a realtime message.
type NotificationType string

const (
	NotificationTripRequest       NotificationType = "trip_request"
	NotificationTripStatusChanged NotificationType = "trip_status_changed"
	NotificationTripLocation      NotificationType = "trip_location"
	NotificationPaymentUpdated    NotificationType = "payment_updated"
	NotificationRatingReceived    NotificationType = "rating_received"
)

// Notifier delivers envelopes to connected users.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, env realtime.Envelope) error
	Broadcast(ctx context.Context, role realtime.Role, env realtime.Envelope) int
}

// TripUpdate is the payload sent after every trip transition.
type TripUpdate struct {
	TripID      string            `json:"tripId"`
	Status      domain.TripStatus `json:"status"`
	TripCode    string            `json:"tripCode"`
	DriverID    string            `json:"driverId,omitempty"`
	PassengerID string            `json:"passengerId"`
	Price       *float64          `json:"price,omitempty"`
}

// LocationUpdate is the payload pushed to the passenger while a trip is tracked.
type LocationUpdate struct {
	TripID    string    `json:"tripId"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"ts"`
}

// NotificationService fans trip changes out to realtime sessions and the event stream.
// Every method is best-effort: failures are logged and counted, never returned.
type NotificationService struct {
	notifier  Notifier
	publisher events.Publisher
	log       logrus.FieldLogger
	timeout   time.Duration
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService. notifier and publisher may be nil.
func NewNotificationService(notifier Notifier, publisher events.Publisher, log logrus.FieldLogger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{
		notifier:  notifier,
		publisher: publisher,
		log:       log,
		timeout:   2 * time.Second,
		now:       time.Now,
	}
}

// NotifyTripRequested announces a new trip to connected drivers.
func (s *NotificationService) NotifyTripRequested(ctx context.Context, trip *domain.Trip) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	if s.notifier != nil {
		s.notifier.Broadcast(ctx, realtime.RoleDriver, s.envelope(ctx, NotificationTripRequest, map[string]any{
			"tripId":         trip.ID,
			"tripCode":       trip.Code,
			"vehicleClass":   trip.VehicleClass,
			"origin":         placePayload(trip.Origin),
			"destination":    placePayload(trip.Destination),
			"estimatedPrice": trip.EstimatedPrice,
		}))
	}
	s.publish(ctx, trip, string(NotificationTripRequest))
}

// NotifyTripUpdate tells both parties about a status change and publishes the event.
func (s *NotificationService) NotifyTripUpdate(ctx context.Context, trip *domain.Trip) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	update := TripUpdate{
		TripID:      trip.ID,
		Status:      trip.Status,
		TripCode:    trip.Code,
		DriverID:    trip.DriverID,
		PassengerID: trip.PassengerID,
		Price:       trip.FinalPrice,
	}
	env := s.envelope(ctx, NotificationTripStatusChanged, update)
	s.sendTo(ctx, trip.ID, trip.PassengerID, env)
	if trip.DriverID != "" {
		s.sendTo(ctx, trip.ID, trip.DriverID, env)
	}
	s.publish(ctx, trip, string(NotificationTripStatusChanged))
}

// NotifyLocation pushes a tracked position to the passenger.
func (s *NotificationService) NotifyLocation(ctx context.Context, trip *domain.Trip, loc *domain.TripLocation) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	s.sendTo(ctx, trip.ID, trip.PassengerID, s.envelope(ctx, NotificationTripLocation, LocationUpdate{
		TripID:    trip.ID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timestamp: loc.Timestamp,
	}))
}

// NotifyPaymentUpdated tells the passenger that the payment of a trip changed.
func (s *NotificationService) NotifyPaymentUpdated(ctx context.Context, trip *domain.Trip, payment *domain.TripPayment) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	s.sendTo(ctx, trip.ID, trip.PassengerID, s.envelope(ctx, NotificationPaymentUpdated, map[string]any{
		"tripId": trip.ID,
		"amount": payment.Amount,
		"method": payment.Method,
		"isPaid": payment.IsPaid,
	}))
}

// NotifyRatingReceived tells the rated party about a new score.
func (s *NotificationService) NotifyRatingReceived(ctx context.Context, trip *domain.Trip, ratedID string, score int) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	s.sendTo(ctx, trip.ID, ratedID, s.envelope(ctx, NotificationRatingReceived, map[string]any{
		"tripId": trip.ID,
		"score":  score,
	}))
}

// detach keeps request values but not cancellation: notifications run after commit.
func (s *NotificationService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *NotificationService) envelope(ctx context.Context, typ NotificationType, data any) realtime.Envelope {
	return realtime.Envelope{
		Type:      string(typ),
		Data:      data,
		Timestamp: s.now().UTC(),
		RequestID: logging.RequestID(ctx),
	}
}

func (s *NotificationService) sendTo(ctx context.Context, tripID, userID string, env realtime.Envelope) {
	if s.notifier == nil || userID == "" {
		return
	}
	err := s.notifier.SendToUser(ctx, userID, env)
	switch {
	case err == nil:
	case errors.Is(err, realtime.ErrNoSession):
		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"trip_id": tripID,
			"user_id": userID,
			"type":    env.Type,
		}).Debug("recipient not connected")
	default:
		metrics.NotificationFailures.WithLabelValues("realtime").Inc()
		logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
			"trip_id": tripID,
			"user_id": userID,
			"type":    env.Type,
		}).Warn("realtime notification failed")
	}
}

func (s *NotificationService) publish(ctx context.Context, trip *domain.Trip, typ string) {
	event := events.TripEvent{
		Type:        typ,
		TripID:      trip.ID,
		TripCode:    trip.Code,
		Status:      string(trip.Status),
		PassengerID: trip.PassengerID,
		DriverID:    trip.DriverID,
		Price:       trip.FinalPrice,
		OccurredAt:  s.now().UTC(),
		RequestID:   logging.RequestID(ctx),
	}
	if trip.FinalPrice == nil && trip.Status == domain.TripStatusRequested {
		price := trip.EstimatedPrice
		event.Price = &price
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.NotificationFailures.WithLabelValues("kafka").Inc()
		logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"status":  trip.Status,
		}).Warn("trip event publish failed")
	}
}

func placePayload(p domain.Place) map[string]any {
	return map[string]any{
		"address": p.Address,
		"lat":     p.Latitude,
		"lon":     p.Longitude,
	}
}
