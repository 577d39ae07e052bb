package tests

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// ACCEPT GUARDS AND CONCURRENCY
// ──────────────────────────────────────────────

func TestAcceptTrip_SecondDriver_InvalidState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")
	_, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-1", VehicleID: "vehicle-1"})
	require.NoError(t, err)

	_, err = env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-2", VehicleID: "vehicle-2"})
	assert.ErrorIs(t, err, service.ErrInvalidTripState)
	assert.Equal(t, "driver-1", env.store.Trips.GetTrip(trip.ID).DriverID)
	assert.False(t, env.locks.IsLocked(trip.ID))
}

func TestAcceptTrip_TripChangedBeforeWrite_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")

	var once sync.Once
	env.store.Trips.BeforeUpdateTransition = func(tripID string) {
		once.Do(func() {
			winner := env.store.Trips.GetTrip(tripID)
			require.NoError(t, winner.Accept("driver-1", "vehicle-1", env.clock.Now()))
			env.store.Trips.AddTrip(winner)
		})
	}

	_, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-2", VehicleID: "vehicle-2"})
	assert.ErrorIs(t, err, service.ErrTripChanged)
	assert.ErrorIs(t, err, service.ErrInvalidTripState)

	stored := env.store.Trips.GetTrip(trip.ID)
	assert.Equal(t, domain.TripStatusAccepted, stored.Status)
	assert.Equal(t, "driver-1", stored.DriverID)
	assert.Equal(t, "vehicle-1", stored.VehicleID)
	assert.Equal(t, int32(1), env.store.Trips.UpdateTransitionCallCount)
	assert.False(t, env.locks.IsLocked(trip.ID))
}

func TestAcceptTrip_DriverTakenBeforeWrite_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")

	var once sync.Once
	env.store.Trips.BeforeUpdateTransition = func(string) {
		once.Do(func() {
			now := env.clock.Now()
			other := &domain.Trip{
				ID:           "trip-elsewhere",
				Code:         "T000000000000ABCDEF",
				PassengerID:  "passenger-2",
				VehicleClass: domain.VehicleClassNormalCar,
				Status:       domain.TripStatusRequested,
				Version:      1,
				RequestedAt:  now,
			}
			require.NoError(t, other.Accept("driver-2", "vehicle-2", now))
			env.store.Trips.AddTrip(other)
		})
	}

	_, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-2", VehicleID: "vehicle-2"})
	assert.ErrorIs(t, err, service.ErrDriverHasActiveTrip)
	assert.ErrorIs(t, err, service.ErrConflictingActiveTrip)

	stored := env.store.Trips.GetTrip(trip.ID)
	assert.Equal(t, domain.TripStatusRequested, stored.Status)
	assert.Empty(t, stored.DriverID)
	assert.Equal(t, "driver-2", env.store.Trips.GetTrip("trip-elsewhere").DriverID)
}

func TestAcceptTrip_ConcurrentAccepts_ExactlyOneWins(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		opts []envOption
	}{
		{"with accept lock", nil},
		{"conditional update only", []envOption{withoutAcceptLock()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.opts...)
			for i := 0; i < 8; i++ {
				id := "racer-" + string(rune('a'+i))
				env.store.Drivers.AddDriver(&domain.Driver{ID: id, Status: domain.DriverStatusApproved, IsOnline: true})
				env.store.Vehicles.AddVehicle(&domain.Vehicle{ID: id + "-car", DriverID: id, Class: domain.VehicleClassNormalCar, IsActive: true, IsVerified: true})
			}
			trip := env.requestTrip(t, "passenger-1")

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners []string
			)
			for i := 0; i < 8; i++ {
				id := "racer-" + string(rune('a'+i))
				wg.Add(1)
				go func() {
					defer wg.Done()
					accepted, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: id, VehicleID: id + "-car"})
					if err != nil {
						assert.ErrorIs(t, err, service.ErrInvalidTripState)
						return
					}
					mu.Lock()
					winners = append(winners, accepted.DriverID)
					mu.Unlock()
				}()
			}
			wg.Wait()

			require.Len(t, winners, 1)
			stored := env.store.Trips.GetTrip(trip.ID)
			assert.Equal(t, domain.TripStatusAccepted, stored.Status)
			assert.Equal(t, winners[0], stored.DriverID)
			assert.Equal(t, winners[0]+"-car", stored.VehicleID)
		})
	}
}

func TestAcceptTrip_ConcurrentTripsForOneDriver_OneWins(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a := env.requestTrip(t, "passenger-1")
	b := env.requestTrip(t, "passenger-2")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: id, DriverID: "driver-1", VehicleID: "vehicle-1"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, service.ErrConflictingActiveTrip)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAcceptTrip_Guards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  func(tripID string) service.AcceptTripRequest
		want error
	}{
		{"offline driver", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "driver-offline"}
		}, service.ErrDriverUnavailable},
		{"driver not approved", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "driver-pending"}
		}, service.ErrResourceUnavailable},
		{"unknown driver", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "ghost"}
		}, service.ErrDriverNotFound},
		{"vehicle of another driver", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "driver-1", VehicleID: "vehicle-2"}
		}, service.ErrVehicleInvalid},
		{"unverified vehicle", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "driver-2", VehicleID: "vehicle-unverified"}
		}, service.ErrVehicleInvalid},
		{"unknown vehicle", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id, DriverID: "driver-1", VehicleID: "nope"}
		}, service.ErrVehicleNotFound},
		{"missing driver id", func(id string) service.AcceptTripRequest {
			return service.AcceptTripRequest{TripID: id}
		}, service.ErrInvalidDriverID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			trip := env.requestTrip(t, "passenger-1")

			_, err := env.trips.AcceptTrip(ctx(), tt.req(trip.ID))
			assert.ErrorIs(t, err, tt.want)

			stored := env.store.Trips.GetTrip(trip.ID)
			assert.Equal(t, domain.TripStatusRequested, stored.Status)
			assert.Empty(t, stored.DriverID)
			assert.Empty(t, stored.VehicleID)
		})
	}
}

func TestAcceptTrip_DriverWithActiveTrip_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.tripIn(t, "passenger-1", domain.TripStatusDriverArrived)
	other := env.requestTrip(t, "passenger-2")

	_, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: other.ID, DriverID: "driver-1", VehicleID: "vehicle-1"})
	assert.ErrorIs(t, err, service.ErrDriverHasActiveTrip)
	assert.ErrorIs(t, err, service.ErrConflictingActiveTrip)
}

func TestAcceptTrip_LockHeld_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	trip := env.requestTrip(t, "passenger-1")
	ok, err := env.locks.AcquireTripLock(ctx(), trip.ID, "driver-2", 0)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-1", VehicleID: "vehicle-1"})
	assert.ErrorIs(t, err, service.ErrInvalidTripState)
	assert.ErrorIs(t, err, service.ErrTripLocked)
}

func TestAcceptTrip_LockStoreDown_FallsBackToConditionalUpdate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.locks.AcquireError = ErrInjected

	trip := env.requestTrip(t, "passenger-1")
	accepted, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-1", VehicleID: "vehicle-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusAccepted, accepted.Status)
}

func TestAcceptTrip_PicksVehicleOfRequestedClass(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.store.Vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-0-van", DriverID: "driver-1", Class: domain.VehicleClassVan, IsActive: true, IsVerified: true})

	trip := env.requestTrip(t, "passenger-1")
	accepted, err := env.trips.AcceptTrip(ctx(), service.AcceptTripRequest{TripID: trip.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, "vehicle-1", accepted.VehicleID)
}
