package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

const pricingColumns = `id, vehicle_class, base_price, price_per_km, price_per_minute, minimum_price, is_active, created_at, updated_at`

// PricingRepository is a PostgreSQL implementation of repository.PricingRepository.
type PricingRepository struct {
	q Querier
}

// NewPricingRepository creates a new PostgreSQL pricing repository.
func NewPricingRepository(db *sql.DB) *PricingRepository {
	return &PricingRepository{q: db}
}

// NewPricingRepositoryWithTx creates a pricing repository using a transaction.
func NewPricingRepositoryWithTx(tx *sql.Tx) *PricingRepository {
	return &PricingRepository{q: tx}
}

// Create persists a new rule.
func (r *PricingRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	query := `INSERT INTO pricing_rules (` + pricingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.q.ExecContext(ctx, query,
		rule.ID,
		rule.VehicleClass,
		rule.BasePrice,
		rule.PricePerKm,
		rule.PricePerMinute,
		rule.MinimumPrice,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}

	return err
}

// GetByID retrieves a rule by ID.
func (r *PricingRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	query := `SELECT ` + pricingColumns + ` FROM pricing_rules WHERE id = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, id)
}

// GetActiveByClass retrieves the active rule for a vehicle class.
func (r *PricingRepository) GetActiveByClass(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error) {
	query := `
		SELECT ` + pricingColumns + `
		FROM pricing_rules
		WHERE vehicle_class = $1 AND is_active AND deleted_at IS NULL
	`
	return r.getOne(ctx, query, class)
}

// List retrieves all rules.
func (r *PricingRepository) List(ctx context.Context) ([]*domain.PricingRule, error) {
	query := `SELECT ` + pricingColumns + ` FROM pricing_rules WHERE deleted_at IS NULL ORDER BY vehicle_class, created_at DESC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PricingRule
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// Update replaces an existing rule.
func (r *PricingRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	query := `
		UPDATE pricing_rules
		SET base_price = $1, price_per_km = $2, price_per_minute = $3, minimum_price = $4, is_active = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		rule.BasePrice,
		rule.PricePerKm,
		rule.PricePerMinute,
		rule.MinimumPrice,
		rule.IsActive,
		rule.UpdatedAt,
		rule.ID,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}

	return checkRowsAffected(result, repository.ErrNotFound)
}

// DeactivateClass marks every active rule of the class inactive.
func (r *PricingRepository) DeactivateClass(ctx context.Context, class domain.VehicleClass) error {
	query := `UPDATE pricing_rules SET is_active = FALSE, updated_at = NOW() WHERE vehicle_class = $1 AND is_active`
	_, err := r.q.ExecContext(ctx, query, class)
	return err
}

func (r *PricingRepository) getOne(ctx context.Context, query string, args ...any) (*domain.PricingRule, error) {
	rule, err := scanPricingRule(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rule, nil
}

func scanPricingRule(row scanner) (*domain.PricingRule, error) {
	var rule domain.PricingRule
	err := row.Scan(
		&rule.ID,
		&rule.VehicleClass,
		&rule.BasePrice,
		&rule.PricePerKm,
		&rule.PricePerMinute,
		&rule.MinimumPrice,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Ensure PricingRepository implements repository.PricingRepository.
var _ repository.PricingRepository = (*PricingRepository)(nil)
