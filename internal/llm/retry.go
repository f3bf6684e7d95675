package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryProvider struct {
	inner   Provider
	config  RetryConfig
	logger  *slog.Logger
	onRetry func(reason string)
}

// RetryOption configures a RetryProvider.
type RetryOption func(*RetryProvider)

// RetryLogger sets the logger used to report retried attempts.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *RetryProvider) { r.logger = l }
}

// OnRetry registers a callback invoked before each retried attempt with
// the RetryReason of the failure.
func OnRetry(fn func(reason string)) RetryOption {
	return func(r *RetryProvider) { r.onRetry = fn }
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig, opts ...RetryOption) Provider {
	r := &RetryProvider{inner: p, config: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	invalidRetried := false

	for attempt := range r.config.MaxAttempts {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.shouldRetry(err, &invalidRetried) {
			return nil, err
		}

		// No sleep after the last attempt.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait := r.backoff(attempt, err)
		reason := RetryReason(err)
		r.logger.Warn("retrying llm request",
			"model", r.inner.ModelID(), "attempt", attempt+1, "reason", reason, "wait", wait, "error", err)
		if r.onRetry != nil {
			r.onRetry(reason)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// shouldRetry determines if an error is retryable.
func (r *RetryProvider) shouldRetry(err error, invalidRetried *bool) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// The provider rejected the request itself; sending it again won't help.
	var bad *ErrBadRequest
	if errors.As(err, &bad) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limit and provider unavailable are retryable.
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return true
	}
	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) {
		return true
	}

	// Other errors (network, etc.) are treated as transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// RetryReason classifies a provider error into a small, fixed label set.
func RetryReason(err error) string {
	var rl *ErrRateLimit
	var unavail *ErrProviderUnavailable
	var invResp *ErrInvalidResponse
	switch {
	case errors.As(err, &rl):
		return "rate_limit"
	case errors.As(err, &unavail):
		return "unavailable"
	case errors.As(err, &invResp):
		return "invalid_response"
	default:
		return "other"
	}
}
