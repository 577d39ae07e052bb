// Package fare computes trip prices from per-class rate cards.
package fare

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ridehail/internal/domain"
)

// DefaultAverageSpeedKmh is the speed assumed when estimating trip duration.
const DefaultAverageSpeedKmh = 40.0

var (
	// ErrNoPricingConfigured is returned when no active rate exists for a vehicle class.
	ErrNoPricingConfigured = errors.New("no pricing configured for vehicle class")

	// ErrNegativeInput is returned for negative distance or duration.
	ErrNegativeInput = errors.New("distance and duration must not be negative")
)

// RateStore looks up the active rate card for a vehicle class.
// Implementations return ErrNoPricingConfigured when none is active.
type RateStore interface {
	GetActiveRate(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error)
}

// Engine prices trips.
type Engine struct {
	rates RateStore
}

// NewEngine creates a new Engine.
func NewEngine(rates RateStore) *Engine {
	return &Engine{rates: rates}
}

// CalculatePrice prices a trip of distanceKm and durationMinutes for the given class.
func (e *Engine) CalculatePrice(ctx context.Context, class domain.VehicleClass, distanceKm float64, durationMinutes int) (float64, error) {
	if distanceKm < 0 || durationMinutes < 0 || math.IsNaN(distanceKm) {
		return 0, ErrNegativeInput
	}

	rule, err := e.rates.GetActiveRate(ctx, class)
	if err != nil {
		return 0, err
	}
	if rule == nil || !rule.IsActive {
		return 0, fmt.Errorf("%w: %s", ErrNoPricingConfigured, class)
	}

	return Price(rule, distanceKm, durationMinutes), nil
}

// Price applies a rate card: base + per-km + per-minute, floored at the minimum
// and rounded to cents.
func Price(rule *domain.PricingRule, distanceKm float64, durationMinutes int) float64 {
	price := rule.BasePrice + rule.PricePerKm*distanceKm + rule.PricePerMinute*float64(durationMinutes)
	if price < rule.MinimumPrice {
		price = rule.MinimumPrice
	}
	return Round2(price)
}

// EstimateDurationMinutes returns whole minutes needed to cover distanceKm at speedKmh.
func EstimateDurationMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultAverageSpeedKmh
	}
	if distanceKm <= 0 {
		return 0
	}
	return int(distanceKm / speedKmh * 60)
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
