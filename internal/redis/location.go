package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverLocationKey = "drivers:locations"

// DriverPosition is a driver's last reported position.
type DriverPosition struct {
	DriverID   string
	Lat        float64
	Lon        float64
	DistanceKm float64 // from the search center, set by FindNearbyDrivers
}

// LocationStore keeps driver positions in a Redis geo index.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's position using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lon float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns up to limit drivers within radiusKm, closest first.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]DriverPosition, error) {
	results, err := s.client.GeoSearchLocation(ctx, driverLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	positions := make([]DriverPosition, 0, len(results))
	for _, r := range results {
		positions = append(positions, DriverPosition{
			DriverID:   r.Name,
			Lat:        r.Latitude,
			Lon:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return positions, nil
}

// RemoveLocation removes a driver from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
