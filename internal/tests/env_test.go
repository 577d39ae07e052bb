package tests

import (
	"sync"
	"testing"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/logging"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store     *MockStore
	notifier  *MockNotifier
	publisher *MockPublisher
	locks     *MockLockStore
	positions *MockLocationStore
	cache     *MockPricingCache
	clock     *fakeClock

	pricing       *service.PricingService
	notifications *service.NotificationService
	trips         *service.TripService
	tracking      *service.TrackingService
	ratings       *service.RatingService
	payments      *service.PaymentService
	matching      *service.MatchingService
	drivers       *service.DriverService
}

type envOption func(*envConfig)

type envConfig struct {
	timeout  time.Duration
	withLock bool
}

func withRequestTimeout(d time.Duration) envOption {
	return func(c *envConfig) { c.timeout = d }
}

func withoutAcceptLock() envOption {
	return func(c *envConfig) { c.withLock = false }
}

var (
	pickup  = domain.Place{Address: "Shahr-e Naw", Latitude: 34.0, Longitude: 69.0}
	dropoff = domain.Place{Address: "Karte Se", Latitude: 34.05, Longitude: 69.05}
)

// Estimated and 12 minute final fares for pickup -> dropoff under normalCarRule.
const (
	expectedEstimate = 13221.04
	expectedFinal    = 13421.04
)

func normalCarRule() *domain.PricingRule {
	return &domain.PricingRule{
		ID:             "rule-normal",
		VehicleClass:   domain.VehicleClassNormalCar,
		BasePrice:      5000,
		PricePerKm:     1000,
		PricePerMinute: 100,
		MinimumPrice:   10000,
		IsActive:       true,
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{timeout: time.Second, withLock: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	env := &testEnv{
		store:     NewMockStore(),
		notifier:  NewMockNotifier(),
		publisher: NewMockPublisher(),
		locks:     NewMockLockStore(),
		positions: NewMockLocationStore(),
		cache:     NewMockPricingCache(),
		clock:     newFakeClock(),
	}
	seed(env.store)

	log := logging.Discard()
	repos := env.store.Repositories()

	env.pricing = service.NewPricingService(env.store.Tx, env.store.Pricing, env.cache, cfg.timeout, log)
	env.notifications = service.NewNotificationService(env.notifier, env.publisher, log)

	tripOpts := []service.TripOption{service.WithClock(env.clock.Now)}
	if cfg.withLock {
		tripOpts = append(tripOpts, service.WithLockStore(env.locks))
	}
	env.trips = service.NewTripService(
		env.store.Tx,
		repos,
		fare.NewEngine(env.pricing),
		env.notifications,
		service.TripConfig{RequestTimeout: cfg.timeout, AverageSpeedKmh: 40, AcceptLockTTL: time.Second},
		log,
		tripOpts...,
	)
	env.tracking = service.NewTrackingService(env.store.Tx, repos, env.positions, env.notifications, cfg.timeout, log)
	env.ratings = service.NewRatingService(env.store.Tx, repos, env.notifications, cfg.timeout, log)
	env.payments = service.NewPaymentService(env.store.Tx, repos, env.notifications, cfg.timeout, log)
	env.matching = service.NewMatchingService(repos, env.positions, env.trips, service.MatchingConfig{RadiusKm: 5, Timeout: cfg.timeout}, log)
	env.drivers = service.NewDriverService(env.positions, env.store.Drivers, cfg.timeout, log)
	return env
}

func seed(s *MockStore) {
	s.Passengers.AddPassenger(&domain.Passenger{ID: "passenger-1", Name: "Ahmad"})
	s.Passengers.AddPassenger(&domain.Passenger{ID: "passenger-2", Name: "Laila"})

	s.Drivers.AddDriver(&domain.Driver{ID: "driver-1", Name: "Karim", Status: domain.DriverStatusApproved, IsOnline: true})
	s.Drivers.AddDriver(&domain.Driver{ID: "driver-2", Name: "Nadia", Status: domain.DriverStatusApproved, IsOnline: true})
	s.Drivers.AddDriver(&domain.Driver{ID: "driver-offline", Status: domain.DriverStatusApproved, IsOnline: false})
	s.Drivers.AddDriver(&domain.Driver{ID: "driver-pending", Status: domain.DriverStatusPending, IsOnline: true})

	s.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-1", DriverID: "driver-1", Class: domain.VehicleClassNormalCar, IsActive: true, IsVerified: true})
	s.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-2", DriverID: "driver-2", Class: domain.VehicleClassNormalCar, IsActive: true, IsVerified: true})
	s.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-unverified", DriverID: "driver-2", Class: domain.VehicleClassVan, IsActive: true, IsVerified: false})

	s.Pricing.AddRule(normalCarRule())
}

func (e *testEnv) requestTrip(t *testing.T, passengerID string) *domain.Trip {
	t.Helper()
	trip, err := e.trips.RequestTrip(ctx(), service.RequestTripRequest{
		PassengerID:  passengerID,
		Origin:       pickup,
		Destination:  dropoff,
		VehicleClass: domain.VehicleClassNormalCar,
	})
	if err != nil {
		t.Fatalf("request trip: %v", err)
	}
	return trip
}

// tripIn drives a new trip for passengerID to status using driver-1.
func (e *testEnv) tripIn(t *testing.T, passengerID string, status domain.TripStatus) *domain.Trip {
	t.Helper()
	trip := e.requestTrip(t, passengerID)
	steps := []struct {
		to  domain.TripStatus
		run func() (*domain.Trip, error)
	}{
		{domain.TripStatusAccepted, func() (*domain.Trip, error) {
			return e.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-1", VehicleID: "vehicle-1"})
		}},
		{domain.TripStatusDriverArrived, func() (*domain.Trip, error) { return e.trips.MarkDriverArrived(ctx(), trip.ID, "driver-1") }},
		{domain.TripStatusInProgress, func() (*domain.Trip, error) { return e.trips.StartTrip(ctx(), trip.ID, "driver-1") }},
		{domain.TripStatusCompleted, func() (*domain.Trip, error) {
			e.clock.Advance(12 * time.Minute)
			return e.trips.CompleteTrip(ctx(), service.CompleteTripRequest{TripID: trip.ID, Latitude: dropoff.Latitude, Longitude: dropoff.Longitude})
		}},
	}
	for _, step := range steps {
		if trip.Status == status {
			return trip
		}
		var err error
		trip, err = step.run()
		if err != nil {
			t.Fatalf("advance to %s: %v", step.to, err)
		}
	}
	return trip
}
