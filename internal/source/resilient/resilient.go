// Package resilient wraps a record source with a circuit breaker, per-call
// timeouts and retries with backoff for reads.
package resilient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"
)

var _ source.RecordSource = (*Source)(nil)

// Config holds resilience parameters. Zero values disable the feature.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

type Source struct {
	next source.RecordSource
	cb   *gobreaker.CircuitBreaker
	cfg  Config
}

// Wrap decorates next. The breaker is named after the backend for logs
// and metrics.
func Wrap(next source.RecordSource, name string, cfg Config) *Source {
	return &Source{next: next, cb: NewCircuitBreaker(name), cfg: cfg}
}

// NewCircuitBreaker creates a breaker that trips at 60% failures over at
// least five calls. Caller mistakes (bad ids, bad periods) and abandoned
// calls are not failures.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err) || errors.Is(err, context.Canceled)
		},
	})
}

// State reports the breaker state.
func (s *Source) State() gobreaker.State {
	return s.cb.State()
}

func (s *Source) FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error) {
	return read(ctx, s, func(ctx context.Context) ([]core.Record, error) {
		return s.next.FetchExpenses(ctx, key)
	})
}

func (s *Source) FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error) {
	return read(ctx, s, func(ctx context.Context) ([]core.Record, error) {
		return s.next.FetchIncome(ctx, key)
	})
}

func (s *Source) FetchByCategory(ctx context.Context, category core.Category, key period.Key) ([]core.Record, error) {
	return read(ctx, s, func(ctx context.Context) ([]core.Record, error) {
		return s.next.FetchByCategory(ctx, category, key)
	})
}

func (s *Source) FetchAllPeriods(ctx context.Context) ([]period.Key, error) {
	return read(ctx, s, func(ctx context.Context) ([]period.Key, error) {
		return s.next.FetchAllPeriods(ctx)
	})
}

// Writes go through the breaker once; they are never retried.
func (s *Source) CreateRecord(ctx context.Context, kind core.Kind, r core.Record) (string, error) {
	return execute(ctx, s, func(ctx context.Context) (string, error) {
		return s.next.CreateRecord(ctx, kind, r)
	})
}

func (s *Source) EditRecord(ctx context.Context, kind core.Kind, r core.Record) error {
	_, err := execute(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.EditRecord(ctx, kind, r)
	})
	return err
}

func (s *Source) DeleteRecord(ctx context.Context, kind core.Kind, id string, key period.Key) error {
	_, err := execute(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.DeleteRecord(ctx, kind, id, key)
	})
	return err
}

func read[T any](ctx context.Context, s *Source, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := retryWithBackoff(ctx, s.cfg, func() error {
		v, err := execute(ctx, s, fn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func execute[T any](ctx context.Context, s *Source, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	res, err := s.cb.Execute(func() (any, error) {
		callCtx := ctx
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// retryWithBackoff runs fn until it succeeds, fails with a caller error,
// the breaker is open, or the retries run out.
func retryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries && cfg.InitialBackoff > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if isCallerError(err) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func isCallerError(err error) bool {
	return errors.Is(err, source.ErrNotFound) ||
		errors.Is(err, period.ErrMalformedKey) ||
		errors.Is(err, period.ErrInvalidPeriod) ||
		errors.Is(err, core.ErrEmptyID) ||
		errors.Is(err, core.ErrInvalidKind)
}
