package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/domain"
)

// PricingCacheTTL bounds how long a rate card may be served after an update elsewhere.
const PricingCacheTTL = 5 * time.Minute

const pricingCachePrefix = "cache:pricing:"

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CachedPricingRule represents a cached pricing rule.
type CachedPricingRule struct {
	ID             string    `json:"id"`
	VehicleClass   string    `json:"vehicle_class"`
	BasePrice      float64   `json:"base_price"`
	PricePerKm     float64   `json:"price_per_km"`
	PricePerMinute float64   `json:"price_per_minute"`
	MinimumPrice   float64   `json:"minimum_price"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetPricingRule retrieves the active rule of a class from cache.
// Returns nil on a cache miss.
func (s *CacheStore) GetPricingRule(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error) {
	data, err := s.client.Get(ctx, pricingCachePrefix+string(class)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedPricingRule
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.PricingRule{
		ID:             cached.ID,
		VehicleClass:   domain.VehicleClass(cached.VehicleClass),
		BasePrice:      cached.BasePrice,
		PricePerKm:     cached.PricePerKm,
		PricePerMinute: cached.PricePerMinute,
		MinimumPrice:   cached.MinimumPrice,
		IsActive:       true,
		UpdatedAt:      cached.UpdatedAt,
	}, nil
}

// SetPricingRule stores an active rule in cache.
func (s *CacheStore) SetPricingRule(ctx context.Context, rule *domain.PricingRule) error {
	data, err := json.Marshal(CachedPricingRule{
		ID:             rule.ID,
		VehicleClass:   string(rule.VehicleClass),
		BasePrice:      rule.BasePrice,
		PricePerKm:     rule.PricePerKm,
		PricePerMinute: rule.PricePerMinute,
		MinimumPrice:   rule.MinimumPrice,
		UpdatedAt:      rule.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pricingCachePrefix+string(rule.VehicleClass), data, PricingCacheTTL).Err()
}

// InvalidatePricingRule removes a class's rule from cache.
func (s *CacheStore) InvalidatePricingRule(ctx context.Context, class domain.VehicleClass) error {
	return s.client.Del(ctx, pricingCachePrefix+string(class)).Err()
}

const idempotencyPrefix = "idempotency:"

// GetResponse returns the stored response for an idempotency key.
// Returns nil on a cache miss.
func (s *CacheStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// SetResponse stores a response under an idempotency key.
func (s *CacheStore) SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyPrefix+key, data, ttl).Err()
}
