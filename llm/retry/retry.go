package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"go.uber.org/zap"
)

// GeneratePolicy configures RetryGenerativeClient. Exactly one of MaxTime or
// MaxTries must be set -- never both, never neither: a rate-limited backend
// is bounded by wall-clock budget, a flaky one by attempt count, never both
// at once.
type GeneratePolicy struct {
	MaxTime  time.Duration // wall-clock budget across all attempts
	MaxTries int           // attempt count cap
	Jitter   bool          // apply full jitter to the backoff delay
}

// NewGeneratePolicy validates the XOR constraint and returns a ready policy,
// defaulting to 3 tries when neither bound is given.
func NewGeneratePolicy(maxTime time.Duration, maxTries int, jitter bool) (GeneratePolicy, error) {
	if maxTime > 0 && maxTries > 0 {
		return GeneratePolicy{}, errors.New("retry: cannot specify both max_time and max_tries")
	}
	if maxTime <= 0 && maxTries <= 0 {
		maxTries = 3
	}
	return GeneratePolicy{MaxTime: maxTime, MaxTries: maxTries, Jitter: jitter}, nil
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// RetryGenerativeClient decorates a llm.GenerativeClient with exponential
// backoff. A Blocked error is never retried -- it is returned immediately so
// a composite wrapper above this one can fall back to the next client.
type RetryGenerativeClient struct {
	delegate llm.GenerativeClient
	policy   GeneratePolicy
	logger   *zap.Logger
}

// NewRetryGenerativeClient wraps delegate with policy.
func NewRetryGenerativeClient(delegate llm.GenerativeClient, policy GeneratePolicy, logger *zap.Logger) *RetryGenerativeClient {
	return &RetryGenerativeClient{delegate: delegate, policy: policy, logger: logger}
}

func (r *RetryGenerativeClient) Name() string { return r.delegate.Name() }

func (r *RetryGenerativeClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	var deadline time.Time
	if r.policy.MaxTime > 0 {
		deadline = time.Now().Add(r.policy.MaxTime)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := r.backoffDelay(attempt)
			if !deadline.IsZero() && time.Now().Add(delay).After(deadline) {
				break
			}
			r.logger.Debug("retrying generate call",
				zap.String("provider", r.delegate.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := r.delegate.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		if llm.IsBlocked(err) {
			return "", err
		}
		lastErr = err

		if r.policy.MaxTries > 0 && attempt+1 >= r.policy.MaxTries {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
	}

	return "", lastErr
}

func (r *RetryGenerativeClient) backoffDelay(attempt int) time.Duration {
	delay := float64(initialBackoff) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	if r.policy.Jitter {
		delay = rand.Float64() * delay
	}
	return time.Duration(delay)
}
