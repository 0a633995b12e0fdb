package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/gigradar/gigradar/internal/config"
)

// ErrOpen indicates the circuit breaker is open and the call was not
// attempted. Callers invoke their fallback instead.
var ErrOpen = errors.New("places circuit open")

// Guard combines the three outbound-call policies for the places provider:
// a process-wide minimum interval between requests, retry with exponential
// backoff on transient failures, and a circuit breaker that only counts
// transient failures.
type Guard struct {
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[any]
	retryMax  int
	retryWait time.Duration
	logger    *slog.Logger
}

// NewGuard creates a Guard from resilience configuration and the places
// rate delay.
func NewGuard(cfg config.ResilienceConfig, rateDelay time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "places",
		MaxRequests: uint32(cfg.BreakerHalfOpen()),
		// Counts clear on this cadence while closed, approximating the
		// sliding call window.
		Interval: time.Duration(cfg.BreakerWindow()) * rateDelay,
		Timeout:  cfg.BreakerOpenWait(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.BreakerMinCalls()) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio*100 >= float64(cfg.BreakerFailureRate())
		},
		// Permanent failures are the caller's problem, not the provider
		// being down; only transient failures feed the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	retryMax := cfg.RetryMax()
	if retryMax < 1 {
		retryMax = 1
	}

	return &Guard{
		limiter:   rate.NewLimiter(rate.Every(rateDelay), 1),
		breaker:   gobreaker.NewCircuitBreaker[any](settings),
		retryMax:  retryMax,
		retryWait: cfg.RetryWait(),
		logger:    logger,
	}
}

// Do runs fn behind the breaker, with rate limiting and retry applied to
// each attempt. When the breaker is open it returns ErrOpen without
// issuing any outbound request.
func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.withRetry(ctx, operation, fn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrOpen, operation)
		}
		return nil, err
	}
	return result, nil
}

// State returns the breaker state for status reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// withRetry makes up to retryMax total attempts (the first call
// included), backing off exponentially between transient failures.
func (g *Guard) withRetry(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	delay := g.retryWait
	var lastErr error

	for attempt := 1; attempt <= g.retryMax; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, ErrTransient) {
			return nil, err
		}

		if attempt < g.retryMax {
			g.logger.Debug("retrying places call",
				"operation", operation,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	return nil, fmt.Errorf("attempts exhausted for %s: %w", operation, lastErr)
}
