package domain

import "time"

// PricingRule is the rate card for a vehicle class.
type PricingRule struct {
	ID             string
	VehicleClass   VehicleClass
	BasePrice      float64
	PricePerKm     float64
	PricePerMinute float64
	MinimumPrice   float64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
