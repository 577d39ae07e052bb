package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/app"
	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/handler"
	"ridehail/internal/logging"
	"ridehail/internal/realtime"
	"ridehail/internal/service"
	"ridehail/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type server struct {
	router    *gin.Engine
	store     *tests.MockStore
	positions *tests.MockLocationStore
	clock     *clock
}

func newServer(t *testing.T) *server {
	t.Helper()

	store := tests.NewMockStore()
	store.Passengers.AddPassenger(&domain.Passenger{ID: "passenger-1"})
	store.Passengers.AddPassenger(&domain.Passenger{ID: "passenger-2"})
	store.Drivers.AddDriver(&domain.Driver{ID: "driver-1", Name: "Karim", Status: domain.DriverStatusApproved, IsOnline: true})
	store.Drivers.AddDriver(&domain.Driver{ID: "driver-offline", Status: domain.DriverStatusApproved})
	store.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-1", DriverID: "driver-1", Class: domain.VehicleClassNormalCar, IsActive: true, IsVerified: true})
	store.Pricing.AddRule(&domain.PricingRule{
		ID:             "rule-normal",
		VehicleClass:   domain.VehicleClassNormalCar,
		BasePrice:      5000,
		PricePerKm:     1000,
		PricePerMinute: 100,
		MinimumPrice:   10000,
		IsActive:       true,
	})

	log := logging.Discard()
	repos := store.Repositories()
	positions := tests.NewMockLocationStore()
	clk := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	timeout := time.Second

	notifications := service.NewNotificationService(tests.NewMockNotifier(), tests.NewMockPublisher(), log)
	pricing := service.NewPricingService(store.Tx, store.Pricing, tests.NewMockPricingCache(), timeout, log)
	trips := service.NewTripService(store.Tx, repos, fare.NewEngine(pricing), notifications,
		service.TripConfig{RequestTimeout: timeout, AverageSpeedKmh: 40},
		log,
		service.WithClock(clk.Now),
		service.WithLockStore(tests.NewMockLockStore()),
	)
	matching := service.NewMatchingService(repos, positions, trips, service.MatchingConfig{Timeout: timeout}, log)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:     handler.NewTripHandler(trips, matching),
		TrackingHandler: handler.NewTrackingHandler(service.NewTrackingService(store.Tx, repos, positions, notifications, timeout, log)),
		RatingHandler:   handler.NewRatingHandler(service.NewRatingService(store.Tx, repos, notifications, timeout, log)),
		PaymentHandler:  handler.NewPaymentHandler(service.NewPaymentService(store.Tx, repos, notifications, timeout, log)),
		PricingHandler:  handler.NewPricingHandler(pricing),
		DriverHandler:   handler.NewDriverHandler(service.NewDriverService(positions, store.Drivers, timeout, log)),
		RealtimeHandler: handler.NewRealtimeHandler(realtime.NewRegistry(log), log),
		Logger:          log,
	})

	return &server{router: router, store: store, positions: positions, clock: clk}
}

func (s *server) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func tripBody(class string) map[string]any {
	return map[string]any{
		"origin":        map[string]any{"address": "Shahr-e Naw", "lat": 34.0, "lng": 69.0},
		"destination":   map[string]any{"address": "Karte Se", "lat": 34.05, "lng": 69.05},
		"vehicle_class": class,
	}
}

func (s *server) createTrip(t *testing.T, passengerID string) handler.TripResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/trips", passengerID, "passenger", tripBody("NORMAL_CAR"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[handler.TripResponse](t, w)
}

func (s *server) completeTrip(t *testing.T, passengerID string) handler.TripResponse {
	t.Helper()
	trip := s.createTrip(t, passengerID)
	for _, step := range []string{"accept", "arrive", "start"} {
		w := s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/"+step, "driver-1", "driver", nil)
		require.Equal(t, http.StatusOK, w.Code, step+": "+w.Body.String())
	}
	s.clock.Advance(12 * time.Minute)
	w := s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/complete", "driver-1", "driver", map[string]float64{"lat": 34.05, "lng": 69.05})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handler.TripResponse](t, w)
}

func TestTripLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	trip := s.createTrip(t, "passenger-1")
	assert.Equal(t, "REQUESTED", trip.Status)
	assert.Equal(t, 13221.04, trip.EstimatedPrice)
	assert.Equal(t, 10, trip.EstimatedDuration)
	assert.Equal(t, "passenger-1", trip.PassengerID)
	assert.Equal(t, int64(1), trip.Version)

	w := s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/accept", "driver-1", "driver", map[string]string{"vehicle_id": "vehicle-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accepted := decode[handler.TripResponse](t, w)
	assert.Equal(t, "ACCEPTED", accepted.Status)
	assert.Equal(t, "driver-1", accepted.DriverID)
	assert.Equal(t, "vehicle-1", accepted.VehicleID)
	assert.NotEmpty(t, accepted.AcceptedAt)

	for _, step := range []string{"arrive", "start"} {
		w := s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/"+step, "driver-1", "driver", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	s.clock.Advance(12 * time.Minute)
	w = s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/complete", "driver-1", "driver", map[string]float64{"lat": 34.05, "lng": 69.05})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[handler.TripResponse](t, w)
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.FinalPrice)
	assert.Equal(t, 13421.04, *done.FinalPrice)
	require.NotNil(t, done.ActualDuration)
	assert.Equal(t, 12, *done.ActualDuration)

	w = s.do(t, http.MethodGet, "/v1/trips/code/"+done.Code, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, trip.ID, decode[handler.TripResponse](t, w).ID)

	w = s.do(t, http.MethodGet, "/v1/trips/"+trip.ID+"/price", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 13421.04, decode[handler.TripPriceResponse](t, w).Price)

	w = s.do(t, http.MethodGet, "/v1/trips/"+trip.ID+"/locations", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]handler.LocationResponse](t, w), 1)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	active := s.createTrip(t, "passenger-1")

	cases := []struct {
		name       string
		method     string
		path       string
		userID     string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"unknown trip", http.MethodGet, "/v1/trips/missing", "", nil, http.StatusNotFound, "not_found"},
		{"second active trip", http.MethodPost, "/v1/trips", "passenger-1", tripBody("NORMAL_CAR"), http.StatusConflict, "conflicting_active_trip"},
		{"no pricing for class", http.MethodPost, "/v1/trips", "passenger-2", tripBody("VAN"), http.StatusServiceUnavailable, "configuration_missing"},
		{"unknown class", http.MethodPost, "/v1/trips", "passenger-2", tripBody("SPACESHIP"), http.StatusBadRequest, "invalid_argument"},
		{"missing coordinates", http.MethodPost, "/v1/trips", "passenger-2", map[string]any{"vehicle_class": "NORMAL_CAR"}, http.StatusBadRequest, "invalid_argument"},
		{"offline driver", http.MethodPost, "/v1/trips/" + active.ID + "/accept", "driver-offline", nil, http.StatusUnprocessableEntity, "resource_unavailable"},
		{"start before arrival", http.MethodPost, "/v1/trips/" + active.ID + "/start", "driver-1", nil, http.StatusConflict, "invalid_trip_state"},
		{"complete without position", http.MethodPost, "/v1/trips/" + active.ID + "/complete", "driver-1", map[string]any{}, http.StatusBadRequest, "invalid_argument"},
		{"rate unfinished trip", http.MethodPost, "/v1/trips/" + active.ID + "/rating", "passenger-1", map[string]any{"role": "PASSENGER", "score": 5}, http.StatusConflict, "invalid_trip_state"},
		{"bad status filter", http.MethodGet, "/v1/trips?status=LOST", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"bad page", http.MethodGet, "/v1/trips?page=two", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"bad from", http.MethodGet, "/v1/trips?from=yesterday", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"unknown driver location", http.MethodPost, "/v1/drivers/ghost/location", "", map[string]float64{"lat": 34, "lng": 69}, http.StatusNotFound, "not_found"},
		{"driver location out of range", http.MethodPost, "/v1/drivers/driver-1/location", "", map[string]float64{"lat": 91, "lng": 69}, http.StatusBadRequest, "invalid_argument"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.userID, "", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode[handler.ErrorResponse](t, w).Code)
		})
	}
}

func TestCancelTrip_RecordsCaller(t *testing.T) {
	s := newServer(t)
	trip := s.createTrip(t, "passenger-1")

	w := s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/cancel", "passenger-1", "passenger", map[string]string{"reason": "changed plans"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cancelled := decode[handler.TripResponse](t, w)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "passenger-1", cancelled.CancelledBy)
	assert.Equal(t, "changed plans", cancelled.CancellationReason)
	assert.Nil(t, cancelled.FinalPrice)

	w = s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/fail", "", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListAndDeleteTrips(t *testing.T) {
	s := newServer(t)
	first := s.createTrip(t, "passenger-1")
	s.createTrip(t, "passenger-2")

	w := s.do(t, http.MethodGet, "/v1/trips?passenger_id=passenger-1", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[handler.TripListResponse](t, w)
	require.Len(t, page.Trips, 1)
	assert.Equal(t, first.ID, page.Trips[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)

	w = s.do(t, http.MethodDelete, "/v1/trips/"+first.ID, "", "admin", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/v1/trips/"+first.ID, "", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	s := newServer(t)
	trip := s.completeTrip(t, "passenger-1")
	path := "/v1/trips/" + trip.ID + "/payment"

	w := s.do(t, http.MethodPost, path, "passenger-1", "passenger", map[string]any{"amount": *trip.FinalPrice, "method": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[handler.PaymentResponse](t, w)
	assert.Equal(t, "CASH", payment.Method)
	assert.False(t, payment.IsPaid)

	w = s.do(t, http.MethodPost, path, "passenger-1", "passenger", map[string]any{"amount": 1, "method": "CARD"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_exists", decode[handler.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPatch, path, "", "admin", map[string]any{"is_paid": true, "reference": "rcpt-9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, path, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paid := decode[handler.PaymentResponse](t, w)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, "rcpt-9", paid.Reference)
	assert.NotEmpty(t, paid.PaidAt)
}

func TestRating_RoleFromCaller(t *testing.T) {
	s := newServer(t)
	trip := s.completeTrip(t, "passenger-1")
	path := "/v1/trips/" + trip.ID + "/rating"

	w := s.do(t, http.MethodPost, path, "passenger-1", "passenger", map[string]any{"score": 4, "comment": "smooth"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, path, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rating := decode[handler.RatingResponse](t, w)
	require.NotNil(t, rating.PassengerRating)
	assert.Equal(t, 4, *rating.PassengerRating)
	assert.Nil(t, rating.DriverRating)

	w = s.do(t, http.MethodPost, path, "passenger-1", "passenger", map[string]any{"score": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPricingRuleEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/pricing-rules", "", "admin", map[string]any{
		"vehicle_class": "luxury_vehicle", "base_price": 9000, "price_per_km": 2000, "price_per_minute": 200, "minimum_price": 20000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rule := decode[handler.PricingRuleResponse](t, w)
	assert.Equal(t, "LUXURY_VEHICLE", rule.VehicleClass)
	assert.True(t, rule.IsActive)

	w = s.do(t, http.MethodPost, "/v1/fares/estimate", "", "", tripBody("LUXURY_VEHICLE"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decode[handler.FareEstimateResponse](t, w)
	assert.Equal(t, 10, quote.EstimatedDuration)
	assert.Equal(t, 25442.07, quote.EstimatedPrice)

	w = s.do(t, http.MethodPost, "/v1/pricing-rules/"+rule.ID+"/deactivate", "", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[handler.PricingRuleResponse](t, w).IsActive)

	w = s.do(t, http.MethodPost, "/v1/fares/estimate", "", "", tripBody("LUXURY_VEHICLE"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/v1/pricing-rules", "", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]handler.PricingRuleResponse](t, w), 2)
}

func TestDriverLocationAndAutoAssign(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/drivers/driver-1/location", "driver-1", "driver", map[string]float64{"lat": 34.001, "lng": 69.001})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.True(t, s.positions.HasLocation("driver-1"))

	trip := s.createTrip(t, "passenger-1")

	w = s.do(t, http.MethodGet, "/v1/trips/"+trip.ID+"/match", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	match := decode[handler.DriverMatchResponse](t, w)
	assert.Equal(t, "driver-1", match.DriverID)
	assert.NotNil(t, match.DistanceKm)

	w = s.do(t, http.MethodPost, "/v1/trips/"+trip.ID+"/auto-assign", "", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "driver-1", decode[handler.TripResponse](t, w).DriverID)

	w = s.do(t, http.MethodPost, "/v1/drivers/driver-1/offline", "driver-1", "driver", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, s.positions.HasLocation("driver-1"))
	assert.False(t, s.store.Drivers.GetDriver("driver-1").IsOnline)
}

func TestRealtime_RequiresIdentity(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/v1/ws", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ridehail_http_requests_total")
}
