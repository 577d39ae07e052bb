package redis

import (
	"context"
	"time"

	"ridehail/internal/domain"
)

// LocationStoreInterface defines the interface for driver position operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lon float64) error
	FindNearbyDrivers(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]DriverPosition, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for short-lived trip locks.
type LockStoreInterface interface {
	AcquireTripLock(ctx context.Context, tripID, owner string, ttl time.Duration) (bool, error)
	ReleaseTripLock(ctx context.Context, tripID, owner string) error
}

// PricingCacheInterface defines the interface for caching active pricing rules.
type PricingCacheInterface interface {
	GetPricingRule(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error)
	SetPricingRule(ctx context.Context, rule *domain.PricingRule) error
	InvalidatePricingRule(ctx context.Context, class domain.VehicleClass) error
}

// ResponseCacheInterface defines the interface for replaying idempotent HTTP responses.
type ResponseCacheInterface interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PricingCacheInterface  = (*CacheStore)(nil)
	_ ResponseCacheInterface = (*CacheStore)(nil)
)
