package repository

import (
	"context"

	"ridehail/internal/domain"
)

// PricingRepository defines the persistence operations for pricing rules.
type PricingRepository interface {
	// Create persists a new rule. Returns ErrConflict if another active rule exists for the class.
	Create(ctx context.Context, rule *domain.PricingRule) error

	// GetByID retrieves a rule by ID.
	GetByID(ctx context.Context, id string) (*domain.PricingRule, error)

	// GetActiveByClass retrieves the active rule for a vehicle class.
	GetActiveByClass(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error)

	// List retrieves all rules.
	List(ctx context.Context) ([]*domain.PricingRule, error)

	// Update replaces an existing rule.
	Update(ctx context.Context, rule *domain.PricingRule) error

	// DeactivateClass marks every active rule of the class inactive.
	DeactivateClass(ctx context.Context, class domain.VehicleClass) error
}
