package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/fare"
	"ridehail/internal/repository"
)

// DefaultRequestTimeout bounds one service operation when no timeout is configured.
const DefaultRequestTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	return context.WithTimeout(ctx, d)
}

// classify converts deadline expiry into ErrTimeout and leaves other errors alone.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// notFound maps repository.ErrNotFound to the given service error.
func notFound(err, as error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return as
	}
	return err
}

func fareError(err error) error {
	switch {
	case errors.Is(err, fare.ErrNoPricingConfigured):
		return ErrNoPricingConfigured
	case errors.Is(err, fare.ErrNegativeInput):
		return ErrNegativeFareInput
	}
	return err
}

func invalidState(status domain.TripStatus) error {
	return fmt.Errorf("%w: trip is %s", ErrInvalidTripState, status)
}
