package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/redis"
	"ridehail/internal/repository"
)

// PricingService manages the per-class rate cards and serves them to the fare engine.
type PricingService struct {
	tx      repository.Transactor
	rules   repository.PricingRepository
	cache   redis.PricingCacheInterface
	timeout time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

var _ fare.RateStore = (*PricingService)(nil)

// NewPricingService creates a new PricingService. cache may be nil.
func NewPricingService(
	tx repository.Transactor,
	rules repository.PricingRepository,
	cache redis.PricingCacheInterface,
	timeout time.Duration,
	log logrus.FieldLogger,
) *PricingService {
	return &PricingService{
		tx:      tx,
		rules:   rules,
		cache:   cache,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// PricingRuleRequest contains the rate card values of a rule.
type PricingRuleRequest struct {
	VehicleClass   domain.VehicleClass
	BasePrice      float64
	PricePerKm     float64
	PricePerMinute float64
	MinimumPrice   float64
}

func (r PricingRuleRequest) validate() error {
	if !r.VehicleClass.Valid() {
		return ErrInvalidVehicleClass
	}
	if r.BasePrice < 0 || r.PricePerKm < 0 || r.PricePerMinute < 0 || r.MinimumPrice < 0 {
		return ErrInvalidPricingRule
	}
	return nil
}

// CreateRule stores a new active rule for a class, replacing the previous active one.
func (s *PricingService) CreateRule(ctx context.Context, req PricingRuleRequest) (*domain.PricingRule, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	rule := &domain.PricingRule{
		ID:             uuid.New().String(),
		VehicleClass:   req.VehicleClass,
		BasePrice:      req.BasePrice,
		PricePerKm:     req.PricePerKm,
		PricePerMinute: req.PricePerMinute,
		MinimumPrice:   req.MinimumPrice,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		if err := r.Pricing.DeactivateClass(ctx, rule.VehicleClass); err != nil {
			return err
		}
		return r.Pricing.Create(ctx, rule)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.invalidate(ctx, rule.VehicleClass)
	return rule, nil
}

// UpdateRule replaces the rate card values of an existing rule.
func (s *PricingService) UpdateRule(ctx context.Context, id string, req PricingRuleRequest) (*domain.PricingRule, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, classify(notFound(err, ErrPricingRuleNotFound))
	}

	previousClass := rule.VehicleClass
	rule.VehicleClass = req.VehicleClass
	rule.BasePrice = req.BasePrice
	rule.PricePerKm = req.PricePerKm
	rule.PricePerMinute = req.PricePerMinute
	rule.MinimumPrice = req.MinimumPrice
	rule.UpdatedAt = s.now()

	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrActivePricingRuleExists
		}
		return nil, classify(notFound(err, ErrPricingRuleNotFound))
	}

	s.invalidate(ctx, previousClass)
	if previousClass != rule.VehicleClass {
		s.invalidate(ctx, rule.VehicleClass)
	}
	return rule, nil
}

// DeactivateRule marks a rule inactive. Fares for its class fail until a new rule is created.
func (s *PricingService) DeactivateRule(ctx context.Context, id string) (*domain.PricingRule, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, classify(notFound(err, ErrPricingRuleNotFound))
	}
	if !rule.IsActive {
		return rule, nil
	}

	rule.IsActive = false
	rule.UpdatedAt = s.now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, classify(notFound(err, ErrPricingRuleNotFound))
	}

	s.invalidate(ctx, rule.VehicleClass)
	return rule, nil
}

// ListRules returns every rule, active or not.
func (s *PricingService) ListRules(ctx context.Context) ([]*domain.PricingRule, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rules, err := s.rules.List(ctx)
	return rules, classify(err)
}

// GetActiveRate returns the active rule of a class, reading through the cache.
// Returns nil without error when the class has no active rule.
func (s *PricingService) GetActiveRate(ctx context.Context, class domain.VehicleClass) (*domain.PricingRule, error) {
	if s.cache != nil {
		rule, err := s.cache.GetPricingRule(ctx, class)
		if err != nil {
			s.log.WithError(err).WithField("vehicle_class", class).Warn("pricing cache read failed")
		} else if rule != nil {
			return rule, nil
		}
	}

	rule, err := s.rules.GetActiveByClass(ctx, class)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPricingRule(ctx, rule); err != nil {
			s.log.WithError(err).WithField("vehicle_class", class).Warn("pricing cache write failed")
		}
	}
	return rule, nil
}

func (s *PricingService) invalidate(ctx context.Context, class domain.VehicleClass) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePricingRule(ctx, class); err != nil {
		s.log.WithError(err).WithField("vehicle_class", class).Warn("pricing cache invalidation failed")
	}
}
