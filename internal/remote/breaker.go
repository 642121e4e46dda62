package remote

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker stops hammering an unreachable store. While open, calls fail
// fast with gobreaker.ErrOpenState; callers already treat remote errors as
// non-fatal.
type Breaker struct {
	next DocumentStore
	cb   *gobreaker.CircuitBreaker
}

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func NewBreaker(next DocumentStore, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("remote store breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Get(ctx context.Context, collection, id string) (Document, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Get(ctx, collection, id)
	})
	if err != nil {
		return Document{}, err
	}
	return out.(Document), nil
}

func (b *Breaker) Put(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Put(ctx, collection, id, data)
	})
	return err
}

func (b *Breaker) Delete(ctx context.Context, collection, id string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Delete(ctx, collection, id)
	})
	return err
}

func (b *Breaker) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Query(ctx, collection, q)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Document), nil
}

func (b *Breaker) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Add(ctx, collection, data)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
