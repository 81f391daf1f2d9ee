package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingClient struct {
	calls   int
	fail    error
	succeed string
	failN   int // number of initial calls that fail before succeeding; 0 = always fail
}

func (c *countingClient) Name() string { return "counting" }

func (c *countingClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	c.calls++
	if c.failN > 0 && c.calls > c.failN {
		return c.succeed, nil
	}
	return "", c.fail
}

func TestRetryNeverRetriesBlocked(t *testing.T) {
	blocked := llm.NewBlockedError("prov", "refused")
	client := &countingClient{fail: blocked}

	policy, err := NewGeneratePolicy(0, 5, false)
	require.NoError(t, err)
	r := NewRetryGenerativeClient(client, policy, zap.NewNop())

	_, err = r.Generate(context.Background(), llm.Request{})
	require.Error(t, err)
	require.True(t, llm.IsBlocked(err))
	require.Equal(t, 1, client.calls, "Blocked must never be retried")
}

func TestRetryRetriesOtherErrorsUpToMaxTries(t *testing.T) {
	client := &countingClient{fail: errors.New("transient")}

	policy, err := NewGeneratePolicy(0, 3, false)
	require.NoError(t, err)
	r := NewRetryGenerativeClient(client, policy, zap.NewNop())

	_, err = r.Generate(context.Background(), llm.Request{})
	require.Error(t, err)
	require.Equal(t, 3, client.calls)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	client := &countingClient{fail: errors.New("transient"), succeed: "ok", failN: 2}

	policy, err := NewGeneratePolicy(0, 5, false)
	require.NoError(t, err)
	r := NewRetryGenerativeClient(client, policy, zap.NewNop())

	resp, err := r.Generate(context.Background(), llm.Request{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, 3, client.calls)
}

func TestRetryMaxTimeBoundsWallClock(t *testing.T) {
	client := &countingClient{fail: errors.New("transient")}

	maxTime := 700 * time.Millisecond
	policy, err := NewGeneratePolicy(maxTime, 0, false)
	require.NoError(t, err)
	r := NewRetryGenerativeClient(client, policy, zap.NewNop())

	start := time.Now()
	_, err = r.Generate(context.Background(), llm.Request{})
	elapsed := time.Since(start)
	require.Error(t, err)
	require.LessOrEqual(t, elapsed, maxTime+maxBackoff, "total wall time must not exceed max_time by more than one backoff slot")
}

func TestGeneratePolicyRejectsBothBoundsSet(t *testing.T) {
	_, err := NewGeneratePolicy(time.Second, 3, false)
	require.Error(t, err)
}

func TestGeneratePolicyDefaultsToThreeTries(t *testing.T) {
	policy, err := NewGeneratePolicy(0, 0, false)
	require.NoError(t, err)
	require.Equal(t, 3, policy.MaxTries)
}
