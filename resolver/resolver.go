// Package resolver runs every data operation against the upstream API first
// and answers from local data when the upstream cannot.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/remote"
)

const defaultTimeout = 5 * time.Second

// Options configures a Resolver. Zero values pick the defaults.
type Options struct {
	Name    string
	Timeout time.Duration // bound on the single remote attempt

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerFailures    uint32

	// FallbackOn decides whether a remote error is answered locally. The
	// default falls back on every error.
	FallbackOn func(error) bool
}

// Resolver holds the circuit breaker shared by the operations it resolves.
// A nil or offline Resolver always resolves locally.
type Resolver struct {
	name       string
	online     bool
	timeout    time.Duration
	fallbackOn func(error) bool
	cb         *gobreaker.CircuitBreaker[any]
}

// Offline returns a resolver that never contacts the upstream
func Offline(name string) *Resolver {
	return &Resolver{name: name}
}

func New(opts Options) *Resolver {
	name := opts.Name
	if name == "" {
		name = "remote-api"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	fallbackOn := opts.FallbackOn
	if fallbackOn == nil {
		fallbackOn = func(error) bool { return true }
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.BreakerMaxRequests,
		Interval:    opts.BreakerInterval,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// an upstream that answers with a client error is up
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Resolver{
		name:       name,
		online:     true,
		timeout:    timeout,
		fallbackOn: fallbackOn,
		cb:         cb,
	}
}

// Online reports whether the resolver tries the upstream at all
func (r *Resolver) Online() bool {
	return r != nil && r.online
}

// State returns the breaker state, "offline" for an offline resolver
func (r *Resolver) State() string {
	if !r.Online() {
		return "offline"
	}
	return r.cb.State().String()
}

// Resolve makes one remote attempt and, if it fails with an error the
// resolver falls back on, runs local once. The remote error is logged and
// never returned in that case. A nil remote goes straight to local.
func Resolve[T any](ctx context.Context, r *Resolver, op string, remoteFn, localFn func(context.Context) (T, error)) (T, error) {
	if !r.Online() || remoteFn == nil {
		return resolveLocal(ctx, op, localFn)
	}

	start := time.Now()
	result, err := r.cb.Execute(func() (any, error) {
		rctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return remoteFn(rctx)
	})
	metrics.RemoteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil {
		typed, castErr := castResult[T](result)
		if castErr == nil {
			metrics.ResolverRequests.WithLabelValues(op, "remote", "success").Inc()
			return typed, nil
		}
		err = castErr
	}

	if !r.fallbackOn(err) {
		metrics.ResolverRequests.WithLabelValues(op, "remote", "error").Inc()
		var zero T
		return zero, err
	}

	event := logging.Warn().Err(err).Str("operation", op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		event = logging.Debug().Err(err).Str("operation", op)
	}
	event.Msg("Remote request failed, answering from local data")
	metrics.RemoteFallbacks.WithLabelValues(op).Inc()

	return resolveLocal(ctx, op, localFn)
}

func resolveLocal[T any](ctx context.Context, op string, localFn func(context.Context) (T, error)) (T, error) {
	result, err := localFn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ResolverRequests.WithLabelValues(op, "local", outcome).Inc()
	return result, err
}

// castResult recovers the typed value from the breaker's result
func castResult[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// IsUnavailable reports whether err means the upstream could not answer:
// transport failures, timeouts, 5xx/429 responses, undecodable bodies and
// an open breaker. Client errors (4xx) mean the upstream answered.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
