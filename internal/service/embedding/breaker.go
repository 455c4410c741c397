package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerProvider wraps a Provider with a circuit breaker so a failing
// embedding backend sheds load fast instead of stacking timeouts.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerProvider wraps the provider with circuit breaker protection.
func NewBreakerProvider(inner Provider, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Embed forwards to the wrapped provider through the breaker.
func (b *BreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("embedding provider unavailable: %w", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

// Dimensions returns the wrapped provider's vector width.
func (b *BreakerProvider) Dimensions() int {
	return b.inner.Dimensions()
}

// IsAvailable reports availability, treating an open breaker as unavailable.
func (b *BreakerProvider) IsAvailable() bool {
	return b.inner.IsAvailable() && b.breaker.State() != gobreaker.StateOpen
}
