package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// TRIP TRACKING
// ──────────────────────────────────────────────

func TestAddTripLocation_WhileTracked(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.tripIn(t, "passenger-1", domain.TripStatusAccepted)
	speed := 32.5

	loc, err := env.tracking.AddTripLocation(ctx(), service.AddLocationRequest{TripID: trip.ID, Latitude: 34.01, Longitude: 69.01, Speed: &speed})
	require.NoError(t, err)
	assert.Equal(t, trip.ID, loc.TripID)

	trail, err := env.tracking.ListTripLocations(ctx(), trip.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, 32.5, *trail[0].Speed)

	var found bool
	for _, sent := range env.notifier.Sent("passenger-1") {
		if sent.Type == string(service.NotificationTripLocation) {
			found = true
		}
	}
	assert.True(t, found, "passenger should receive the location")
	assert.True(t, env.positions.HasLocation("driver-1"))
}

func TestAddTripLocation_OutsideTrackedStates_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	requested := env.requestTrip(t, "passenger-1")
	_, err := env.tracking.AddTripLocation(ctx(), service.AddLocationRequest{TripID: requested.ID, Latitude: 34, Longitude: 69})
	assert.ErrorIs(t, err, service.ErrInvalidTripState)

	completed := env.tripIn(t, "passenger-2", domain.TripStatusCompleted)
	_, err = env.tracking.AddTripLocation(ctx(), service.AddLocationRequest{TripID: completed.ID, Latitude: 34, Longitude: 69})
	assert.ErrorIs(t, err, service.ErrTripNotTrackable)

	assert.Equal(t, 0, env.store.Locations.CountForTrip(requested.ID))
	assert.Equal(t, 1, env.store.Locations.CountForTrip(completed.ID)) // drop-off only
}

func TestAddTripLocation_InvalidCoordinates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.tripIn(t, "passenger-1", domain.TripStatusInProgress)
	_, err := env.tracking.AddTripLocation(ctx(), service.AddLocationRequest{TripID: trip.ID, Latitude: -95, Longitude: 69})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)
}

// ──────────────────────────────────────────────
// DRIVER AVAILABILITY
// ──────────────────────────────────────────────

func TestUpdateDriverLocation_SetsOnline(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	err := env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-offline", Latitude: 34, Longitude: 69})
	require.NoError(t, err)
	assert.True(t, env.store.Drivers.GetDriver("driver-offline").IsOnline)
	assert.True(t, env.positions.HasLocation("driver-offline"))

	require.NoError(t, env.drivers.SetDriverOffline(ctx(), "driver-offline"))
	assert.False(t, env.store.Drivers.GetDriver("driver-offline").IsOnline)
	assert.False(t, env.positions.HasLocation("driver-offline"))
}

func TestUpdateDriverLocation_Rejections(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	err := env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "ghost", Latitude: 34, Longitude: 69})
	assert.ErrorIs(t, err, service.ErrDriverNotFound)

	err = env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-1", Latitude: 34, Longitude: 200})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)

	env.positions.UpdateError = ErrInjected
	err = env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-1", Latitude: 34, Longitude: 69})
	assert.ErrorIs(t, err, ErrInjected)
	assert.False(t, env.positions.HasLocation("driver-1"))
}

// ──────────────────────────────────────────────
// MATCHING
// ──────────────────────────────────────────────

func TestFindDriver_NearestFirst(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-1", Latitude: 34.03, Longitude: 69.03}))
	require.NoError(t, env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-2", Latitude: 34.001, Longitude: 69.001}))

	trip := env.requestTrip(t, "passenger-1")
	match, err := env.matching.FindDriver(ctx(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-2", match.Driver.ID)
	assert.Equal(t, "vehicle-2", match.Vehicle.ID)
	require.NotNil(t, match.DistanceKm)
	assert.Less(t, *match.DistanceKm, 1.0)
}

func TestFindDriver_SkipsBusyAndOfflineDrivers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-1", Latitude: 34.001, Longitude: 69.001}))
	require.NoError(t, env.drivers.UpdateDriverLocation(ctx(), service.UpdateLocationRequest{DriverID: "driver-2", Latitude: 34.02, Longitude: 69.02}))
	env.tripIn(t, "passenger-2", domain.TripStatusAccepted) // occupies driver-1

	trip := env.requestTrip(t, "passenger-1")
	match, err := env.matching.FindDriver(ctx(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-2", match.Driver.ID)
}

func TestFindDriver_FallsBackToAvailableDrivers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.positions.FindError = ErrInjected

	trip := env.requestTrip(t, "passenger-1")
	match, err := env.matching.FindDriver(ctx(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", match.Driver.ID)
	assert.Nil(t, match.DistanceKm)
}

func TestFindDriver_PrefersMatchingVehicleClass(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.store.Pricing.AddRule(&domain.PricingRule{ID: "rule-van", VehicleClass: domain.VehicleClassVan, BasePrice: 8000, MinimumPrice: 12000, IsActive: true})
	env.store.Drivers.AddDriver(&domain.Driver{ID: "driver-van", Status: domain.DriverStatusApproved, IsOnline: true})
	env.store.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-van", DriverID: "driver-van", Class: domain.VehicleClassVan, IsActive: true, IsVerified: true})

	trip, err := env.trips.RequestTrip(ctx(), service.RequestTripRequest{
		PassengerID:  "passenger-1",
		Origin:       pickup,
		Destination:  dropoff,
		VehicleClass: domain.VehicleClassVan,
	})
	require.NoError(t, err)

	match, err := env.matching.FindDriver(ctx(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-van", match.Driver.ID)
}

func TestFindDriver_NoneAvailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")
	for _, id := range []string{"driver-1", "driver-2"} {
		require.NoError(t, env.drivers.SetDriverOffline(ctx(), id))
	}

	_, err := env.matching.FindDriver(ctx(), trip.ID)
	assert.ErrorIs(t, err, service.ErrNoDriverAvailable)
	assert.ErrorIs(t, err, service.ErrResourceUnavailable)
}

func TestAutoAssign_AcceptsForMatchedDriver(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")
	accepted, err := env.matching.AutoAssign(ctx(), trip.ID, "dispatcher")
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusAccepted, accepted.Status)
	assert.Equal(t, "driver-1", accepted.DriverID)
	assert.Equal(t, "dispatcher", accepted.UpdatedBy)

	_, err = env.matching.AutoAssign(ctx(), trip.ID, "dispatcher")
	assert.ErrorIs(t, err, service.ErrInvalidTripState)
}
