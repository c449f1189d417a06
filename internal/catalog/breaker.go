package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Source is everything the bag needs from the catalog.
type Source interface {
	LookupPrice(ctx context.Context, productID string) (decimal.Decimal, error)
	LookupDisplays(ctx context.Context, productIDs []string) (map[string]domain.Display, error)
	LookupDeliveryFee(ctx context.Context, deliveryID string) (decimal.Decimal, error)
	ListDeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error)
}

type BreakerSettings struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration
}

// Breaker guards a Source with a circuit breaker. Not-found answers are
// treated as healthy responses.
type Breaker struct {
	next Source
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next Source, s BreakerSettings) *Breaker {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("catalog circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: isHealthy,
	})

	return &Breaker{next: next, cb: cb}
}

func isHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrDeliveryOptionNotFound) ||
		errors.Is(err, context.Canceled)
}

func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	if err != nil {
		return zero, err
	}

	return res.(T), nil
}

func (b *Breaker) LookupPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	return execute(b, func() (decimal.Decimal, error) {
		return b.next.LookupPrice(ctx, productID)
	})
}

func (b *Breaker) LookupDisplays(ctx context.Context, productIDs []string) (map[string]domain.Display, error) {
	return execute(b, func() (map[string]domain.Display, error) {
		return b.next.LookupDisplays(ctx, productIDs)
	})
}

func (b *Breaker) LookupDeliveryFee(ctx context.Context, deliveryID string) (decimal.Decimal, error) {
	return execute(b, func() (decimal.Decimal, error) {
		return b.next.LookupDeliveryFee(ctx, deliveryID)
	})
}

func (b *Breaker) ListDeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error) {
	return execute(b, func() ([]domain.DeliveryOption, error) {
		return b.next.ListDeliveryOptions(ctx)
	})
}

// State reports the circuit state, for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
