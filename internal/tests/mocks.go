package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/events"
	"ridehail/internal/geo"
	"ridehail/internal/realtime"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK STORE AND TRANSACTOR
// ──────────────────────────────────────────────

// MockStore bundles the in-memory repositories of one test.
type MockStore struct {
	Trips      *MockTripRepository
	Locations  *MockLocationRepository
	Ratings    *MockRatingRepository
	Payments   *MockPaymentRepository
	Pricing    *MockPricingRepository
	Drivers    *MockDriverRepository
	Vehicles   *MockVehicleRepository
	Passengers *MockPassengerRepository
	Tx         *MockTransactor
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	trips := NewMockTripRepository()
	s := &MockStore{
		Trips:      trips,
		Locations:  NewMockLocationRepository(),
		Ratings:    NewMockRatingRepository(trips),
		Payments:   NewMockPaymentRepository(),
		Pricing:    NewMockPricingRepository(),
		Drivers:    NewMockDriverRepository(),
		Vehicles:   NewMockVehicleRepository(),
		Passengers: NewMockPassengerRepository(),
	}
	s.Tx = &MockTransactor{store: s}
	return s
}

// Repositories returns the store as a repository.Repositories.
func (s *MockStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Trips:      s.Trips,
		Locations:  s.Locations,
		Ratings:    s.Ratings,
		Payments:   s.Payments,
		Pricing:    s.Pricing,
		Drivers:    s.Drivers,
		Vehicles:   s.Vehicles,
		Passengers: s.Passengers,
	}
}

type snapshotter interface {
	snapshot() (restore func())
}

// MockTransactor serializes transactions and restores every repository when fn fails.
type MockTransactor struct {
	mu    sync.Mutex
	store *MockStore

	CommitCount   int32
	RollbackCount int32

	// Error injection
	BeginError error
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if m.BeginError != nil {
		return m.BeginError
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var restores []func()
	for _, s := range []snapshotter{
		m.store.Trips, m.store.Locations, m.store.Ratings, m.store.Payments,
		m.store.Pricing, m.store.Drivers, m.store.Vehicles, m.store.Passengers,
	} {
		restores = append(restores, s.snapshot())
	}

	if err := fn(m.store.Repositories()); err != nil {
		for _, restore := range restores {
			restore()
		}
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}
	if err := ctx.Err(); err != nil {
		for _, restore := range restores {
			restore()
		}
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}

	atomic.AddInt32(&m.CommitCount, 1)
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository. It enforces the
// active-trip uniqueness rules and the conditional update the database provides.
type MockTripRepository struct {
	mu      sync.RWMutex
	trips   map[string]*domain.Trip
	deleted map[string]bool

	// committed is the state a rollback returns to. AddTrip writes land here
	// too, so they behave like another transaction that already committed.
	committed map[string]*domain.Trip

	// Counters for verification
	CreateCallCount           int32
	UpdateTransitionCallCount int32

	// Error injection
	CreateError error
	UpdateError error

	// CodeCollisions makes the next n creates fail as if the trip code were taken.
	CodeCollisions int32

	// Delay is applied to GetByID and honours context cancellation.
	Delay time.Duration

	// BeforeUpdateTransition runs after the caller read the trip and before
	// the conditional write, letting a test commit a competing change.
	BeforeUpdateTransition func(tripID string)
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips:   make(map[string]*domain.Trip),
		deleted: make(map[string]bool),
	}
}

// AddTrip stores a trip directly.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *trip
	m.trips[trip.ID] = &t
	if m.committed != nil {
		c := *trip
		m.committed[trip.ID] = &c
	}
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	if atomic.AddInt32(&m.CodeCollisions, -1) >= 0 {
		return repository.ErrDuplicateCode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.trips {
		if t.Code == trip.Code {
			return repository.ErrDuplicateCode
		}
		if m.deleted[id] {
			continue
		}
		if t.PassengerID == trip.PassengerID && t.Status.IsActive() {
			return repository.ErrConflict
		}
	}
	t := *trip
	m.trips[trip.ID] = &t
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok || m.deleted[id] {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) GetByCode(ctx context.Context, code string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, t := range m.trips {
		if t.Code == code && !m.deleted[id] {
			copy := *t
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockTripRepository) List(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Trip
	for id, t := range m.trips {
		switch {
		case m.deleted[id]:
		case filter.Status != "" && t.Status != filter.Status:
		case filter.PassengerID != "" && t.PassengerID != filter.PassengerID:
		case filter.DriverID != "" && t.DriverID != filter.DriverID:
		case !filter.From.IsZero() && t.RequestedAt.Before(filter.From):
		case !filter.To.IsZero() && t.RequestedAt.After(filter.To):
		default:
			copy := *t
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })

	start := filter.Offset()
	if start >= len(out) {
		return []*domain.Trip{}, nil
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (m *MockTripRepository) GetActiveByPassengerID(ctx context.Context, passengerID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, t := range m.trips {
		if t.PassengerID == passengerID && t.Status.IsActive() && !m.deleted[id] {
			copy := *t
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockTripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, t := range m.trips {
		if t.DriverID == driverID && t.Status.OccupiesDriver() && !m.deleted[id] {
			copy := *t
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockTripRepository) UpdateTransition(ctx context.Context, trip *domain.Trip, fromStatus domain.TripStatus, fromVersion int64) error {
	atomic.AddInt32(&m.UpdateTransitionCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if m.BeforeUpdateTransition != nil {
		m.BeforeUpdateTransition(trip.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.trips[trip.ID]
	if !ok || m.deleted[trip.ID] || current.Status != fromStatus || current.Version != fromVersion {
		return repository.ErrStaleState
	}
	if trip.DriverID != "" && trip.Status.OccupiesDriver() {
		for id, t := range m.trips {
			if id != trip.ID && !m.deleted[id] && t.DriverID == trip.DriverID && t.Status.OccupiesDriver() {
				return repository.ErrConflict
			}
		}
	}
	t := *trip
	m.trips[trip.ID] = &t
	return nil
}

func (m *MockTripRepository) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok || m.deleted[id] {
		return repository.ErrNotFound
	}
	m.deleted[id] = true
	return nil
}

// GetTrip returns a trip for test verification, including hidden ones.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil
	}
	copy := *t
	return &copy
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

func (m *MockTripRepository) snapshot() func() {
	m.mu.Lock()
	trips := make(map[string]*domain.Trip, len(m.trips))
	for id, t := range m.trips {
		copy := *t
		trips[id] = &copy
	}
	deleted := make(map[string]bool, len(m.deleted))
	for id, d := range m.deleted {
		deleted[id] = d
	}
	m.committed = trips
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.trips = m.committed
		m.deleted = deleted
		m.committed = nil
	}
}

// ──────────────────────────────────────────────
// MOCK LOCATION REPOSITORY
// ──────────────────────────────────────────────

// MockLocationRepository is a mock implementation of LocationRepository.
type MockLocationRepository struct {
	mu        sync.RWMutex
	locations []*domain.TripLocation

	AppendError error
}

// NewMockLocationRepository creates a new mock location repository.
func NewMockLocationRepository() *MockLocationRepository {
	return &MockLocationRepository{}
}

func (m *MockLocationRepository) Append(ctx context.Context, location *domain.TripLocation) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := *location
	m.locations = append(m.locations, &l)
	return nil
}

func (m *MockLocationRepository) ListByTripID(ctx context.Context, tripID string) ([]*domain.TripLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.TripLocation{}
	for _, l := range m.locations {
		if l.TripID == tripID {
			copy := *l
			out = append(out, &copy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// CountForTrip returns the number of pings stored for a trip.
func (m *MockLocationRepository) CountForTrip(tripID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, l := range m.locations {
		if l.TripID == tripID {
			n++
		}
	}
	return n
}

func (m *MockLocationRepository) snapshot() func() {
	m.mu.RLock()
	locations := append([]*domain.TripLocation(nil), m.locations...)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.locations = locations
	}
}

// ──────────────────────────────────────────────
// MOCK RATING REPOSITORY
// ──────────────────────────────────────────────

// MockRatingRepository is a mock implementation of RatingRepository.
type MockRatingRepository struct {
	mu      sync.RWMutex
	ratings map[string]*domain.TripRating // by trip id
	trips   *MockTripRepository

	UpsertCallCount int32
}

// NewMockRatingRepository creates a new mock rating repository reading trips from trips.
func NewMockRatingRepository(trips *MockTripRepository) *MockRatingRepository {
	return &MockRatingRepository{
		ratings: make(map[string]*domain.TripRating),
		trips:   trips,
	}
}

func (m *MockRatingRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

func (m *MockRatingRepository) UpsertHalf(ctx context.Context, rating *domain.TripRating, role domain.RatingRole) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.ratings[rating.TripID]
	if !ok {
		r := *rating
		m.ratings[rating.TripID] = &r
		return nil
	}
	merged := *existing
	switch role {
	case domain.RatingRolePassenger:
		merged.PassengerRating = rating.PassengerRating
		merged.PassengerComment = rating.PassengerComment
	case domain.RatingRoleDriver:
		merged.DriverRating = rating.DriverRating
		merged.DriverComment = rating.DriverComment
	}
	merged.UpdatedAt = rating.UpdatedAt
	m.ratings[rating.TripID] = &merged
	return nil
}

func (m *MockRatingRepository) AverageForDriver(ctx context.Context, driverID string) (float64, int, error) {
	return m.average(func(t *domain.Trip, r *domain.TripRating) *int {
		if t.DriverID != driverID {
			return nil
		}
		return r.PassengerRating
	})
}

func (m *MockRatingRepository) AverageForPassenger(ctx context.Context, passengerID string) (float64, int, error) {
	return m.average(func(t *domain.Trip, r *domain.TripRating) *int {
		if t.PassengerID != passengerID {
			return nil
		}
		return r.DriverRating
	})
}

func (m *MockRatingRepository) average(score func(*domain.Trip, *domain.TripRating) *int) (float64, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum, n := 0, 0
	for tripID, r := range m.ratings {
		t := m.trips.GetTrip(tripID)
		if t == nil || t.Status != domain.TripStatusCompleted {
			continue
		}
		if s := score(t, r); s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

// CountRatings returns the number of rating rows.
func (m *MockRatingRepository) CountRatings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ratings)
}

func (m *MockRatingRepository) snapshot() func() {
	m.mu.RLock()
	ratings := make(map[string]*domain.TripRating, len(m.ratings))
	for id, r := range m.ratings {
		copy := *r
		ratings[id] = &copy
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.ratings = ratings
	}
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.TripPayment // by trip id

	CreateCallCount int32

	// BeforeUpdate runs after the caller read the payment and before its write.
	BeforeUpdate func(tripID string)
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.TripPayment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.TripPayment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.TripID]; ok {
		return repository.ErrConflict
	}
	p := *payment
	m.payments[payment.TripID] = &p
	return nil
}

func (m *MockPaymentRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.TripPayment) error {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(payment.TripID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.payments[payment.TripID]
	if !ok {
		return repository.ErrNotFound
	}
	if existing.PaidAt != nil {
		paidAt := *existing.PaidAt
		payment.PaidAt = &paidAt
	}
	p := *payment
	m.payments[payment.TripID] = &p
	return nil
}

// PutPayment stores a payment directly.
func (m *MockPaymentRepository) PutPayment(payment *domain.TripPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *payment
	m.payments[payment.TripID] = &p
}

// CountPayments returns the number of payment rows.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

func (m *MockPaymentRepository) snapshot() func() {
	m.mu.RLock()
	payments := make(map[string]*domain.TripPayment, len(m.payments))
	for id, p := range m.payments {
		copy := *p
		payments[id] = &copy
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.payments = payments
	}
}

// ──────────────────────────────────────────────
// MOCK PRICING REPOSITORY
// ──────────────────────────────────────────────

// MockPricingRepository is a mock implementation of PricingRepository.
type MockPricingRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.PricingRule

	GetActiveCallCount int32
	GetActiveError     error
}

// NewMockPricingRepository creates a new mock pricing repository.
func NewMockPricingRepository() *MockPricingRepository {
	return &MockPricingRepository{rules: make(map[string]*domain.PricingRule)}
}

// AddRule stores a rule directly.
func (m *MockPricingRepository) AddRule(rule *domain.PricingRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *rule
	m.rules[rule.ID] = &r
}

func (m *MockPricingRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.IsActive && m.activeLocked(rule.VehicleClass, rule.ID) != nil {
		return repository.ErrConflict
	}
	r := *rule
	m.rules[rule.ID] = &r
	return nil
}

func (m *MockPricingRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

func (m *MockPricingRepository) GetActiveByClass(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error) {
	atomic.AddInt32(&m.GetActiveCallCount, 1)
	if m.GetActiveError != nil {
		return nil, m.GetActiveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.activeLocked(class, "")
	if r == nil {
		return nil, repository.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

func (m *MockPricingRepository) List(ctx context.Context) ([]*domain.PricingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.PricingRule, 0, len(m.rules))
	for _, r := range m.rules {
		copy := *r
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockPricingRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return repository.ErrNotFound
	}
	if rule.IsActive && m.activeLocked(rule.VehicleClass, rule.ID) != nil {
		return repository.ErrConflict
	}
	r := *rule
	m.rules[rule.ID] = &r
	return nil
}

func (m *MockPricingRepository) DeactivateClass(ctx context.Context, class domain.VehicleClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.VehicleClass == class {
			r.IsActive = false
		}
	}
	return nil
}

func (m *MockPricingRepository) activeLocked(class domain.VehicleClass, exceptID string) *domain.PricingRule {
	for id, r := range m.rules {
		if id != exceptID && r.VehicleClass == class && r.IsActive {
			return r
		}
	}
	return nil
}

func (m *MockPricingRepository) snapshot() func() {
	m.mu.RLock()
	rules := make(map[string]*domain.PricingRule, len(m.rules))
	for id, r := range m.rules {
		copy := *r
		rules[id] = &copy
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rules = rules
	}
}

// ──────────────────────────────────────────────
// MOCK DRIVER, VEHICLE AND PASSENGER REPOSITORIES
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	SetOnlineCallCount int32
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{drivers: make(map[string]*domain.Driver)}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *d
	return &copy, nil
}

func (m *MockDriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Driver
	for _, d := range m.drivers {
		if d.Available() {
			copy := *d
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDriverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	atomic.AddInt32(&m.SetOnlineCallCount, 1)
	return m.update(id, func(d *domain.Driver) { d.IsOnline = online })
}

func (m *MockDriverRepository) IncrementTotalTrips(ctx context.Context, id string) error {
	return m.update(id, func(d *domain.Driver) { d.TotalTrips++ })
}

func (m *MockDriverRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	return m.update(id, func(d *domain.Driver) { d.Rating = rating })
}

func (m *MockDriverRepository) update(id string, fn func(*domain.Driver)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(d)
	return nil
}

// GetDriver returns a driver for test verification.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil
	}
	copy := *d
	return &copy
}

func (m *MockDriverRepository) snapshot() func() {
	m.mu.RLock()
	drivers := make(map[string]*domain.Driver, len(m.drivers))
	for id, d := range m.drivers {
		copy := *d
		drivers[id] = &copy
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.drivers = drivers
	}
}

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{vehicles: make(map[string]*domain.Vehicle)}
}

// AddVehicle adds a vehicle to the mock repository.
func (m *MockVehicleRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *vehicle
	m.vehicles[vehicle.ID] = &v
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *v
	return &copy, nil
}

func (m *MockVehicleRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Vehicle
	for _, v := range m.vehicles {
		if v.DriverID == driverID {
			copy := *v
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockVehicleRepository) snapshot() func() { return func() {} }

// MockPassengerRepository is a mock implementation of PassengerRepository.
type MockPassengerRepository struct {
	mu         sync.RWMutex
	passengers map[string]*domain.Passenger
}

// NewMockPassengerRepository creates a new mock passenger repository.
func NewMockPassengerRepository() *MockPassengerRepository {
	return &MockPassengerRepository{passengers: make(map[string]*domain.Passenger)}
}

// AddPassenger adds a passenger to the mock repository.
func (m *MockPassengerRepository) AddPassenger(passenger *domain.Passenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *passenger
	m.passengers[passenger.ID] = &p
}

func (m *MockPassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPassengerRepository) IncrementTotalTrips(ctx context.Context, id string) error {
	return m.update(id, func(p *domain.Passenger) { p.TotalTrips++ })
}

func (m *MockPassengerRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	return m.update(id, func(p *domain.Passenger) { p.Rating = rating })
}

func (m *MockPassengerRepository) update(id string, fn func(*domain.Passenger)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passengers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	return nil
}

// GetPassenger returns a passenger for test verification.
func (m *MockPassengerRepository) GetPassenger(id string) *domain.Passenger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil
	}
	copy := *p
	return &copy
}

func (m *MockPassengerRepository) snapshot() func() {
	m.mu.RLock()
	passengers := make(map[string]*domain.Passenger, len(m.passengers))
	for id, p := range m.passengers {
		copy := *p
		passengers[id] = &copy
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.passengers = passengers
	}
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	positions map[string]geo.Point

	UpdateCallCount int32
	UpdateError     error
	FindError       error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{positions: make(map[string]geo.Point)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lon float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = geo.Point{Lat: lat, Lon: lon}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]redis.DriverPosition, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	center := geo.Point{Lat: lat, Lon: lon}
	var out []redis.DriverPosition
	for id, p := range m.positions {
		d := geo.Distance(center, p)
		if d <= radiusKm {
			out = append(out, redis.DriverPosition{DriverID: id, Lat: p.Lat, Lon: p.Lon, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

// HasLocation reports whether a driver is in the index.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[driverID]
	return ok
}

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string // trip id -> owner

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID, owner string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[tripID]; held {
		return false, nil
	}
	m.locks[tripID] = owner
	return true, nil
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[tripID] == owner {
		delete(m.locks, tripID)
	}
	return nil
}

// IsLocked reports whether a trip lock is held.
func (m *MockLockStore) IsLocked(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[tripID]
	return held
}

// MockPricingCache is a mock implementation of PricingCacheInterface.
type MockPricingCache struct {
	mu    sync.Mutex
	rules map[domain.VehicleClass]*domain.PricingRule

	InvalidateCallCount int32
}

// NewMockPricingCache creates a new mock pricing cache.
func NewMockPricingCache() *MockPricingCache {
	return &MockPricingCache{rules: make(map[domain.VehicleClass]*domain.PricingRule)}
}

func (m *MockPricingCache) GetPricingRule(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[class]
	if !ok {
		return nil, nil
	}
	copy := *r
	return &copy, nil
}

func (m *MockPricingCache) SetPricingRule(ctx context.Context, rule *domain.PricingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *rule
	m.rules[rule.VehicleClass] = &r
	return nil
}

func (m *MockPricingCache) InvalidatePricingRule(ctx context.Context, class domain.VehicleClass) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, class)
	return nil
}

// Cached reports whether a class is cached.
func (m *MockPricingCache) Cached(class domain.VehicleClass) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rules[class]
	return ok
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER AND PUBLISHER
// ──────────────────────────────────────────────

// MockNotifier records realtime envelopes.
type MockNotifier struct {
	mu         sync.Mutex
	sent       map[string][]realtime.Envelope
	broadcasts []realtime.Envelope

	SendError error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{sent: make(map[string][]realtime.Envelope)}
}

func (m *MockNotifier) SendToUser(ctx context.Context, userID string, env realtime.Envelope) error {
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[userID] = append(m.sent[userID], env)
	return nil
}

func (m *MockNotifier) Broadcast(ctx context.Context, role realtime.Role, env realtime.Envelope) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, env)
	return 1
}

// Sent returns the envelopes delivered to a user.
func (m *MockNotifier) Sent(userID string) []realtime.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]realtime.Envelope(nil), m.sent[userID]...)
}

// Broadcasts returns the broadcast envelopes.
func (m *MockNotifier) Broadcasts() []realtime.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]realtime.Envelope(nil), m.broadcasts...)
}

// MockPublisher records trip events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.TripEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event events.TripEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Events returns the published events.
func (m *MockPublisher) Events() []events.TripEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.TripEvent(nil), m.events...)
}

// ErrInjected is a generic failure for error injection.
var ErrInjected = errors.New("injected failure")
