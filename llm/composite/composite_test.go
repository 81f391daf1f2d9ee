package composite

import (
	"context"
	"errors"
	"testing"

	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedClient answers Generate with a fixed result/error pair and counts
// how many times it was invoked.
type scriptedClient struct {
	name  string
	resp  string
	err   error
	calls int
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	c.calls++
	return c.resp, c.err
}

func TestCompositeBadResponseFallsBackToNextClient(t *testing.T) {
	a := &scriptedClient{name: "A", resp: `{"route":"NOTSURE"}`}
	b := &scriptedClient{name: "B", resp: `{"route":"GENERAL"}`}

	c, err := New("router-tier1", []llm.GenerativeClient{a, b}, zap.NewNop(),
		WithIsBadResponse(func(resp string) bool { return resp == `{"route":"NOTSURE"}` }))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), llm.Request{})
	require.NoError(t, err)
	require.Equal(t, `{"route":"GENERAL"}`, resp)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}

func TestCompositeAllFailReturnsWrappedLastError(t *testing.T) {
	errA := errors.New("A down")
	errB := errors.New("B down")
	a := &scriptedClient{name: "A", err: errA}
	b := &scriptedClient{name: "B", err: errB}

	c, err := New("chain", []llm.GenerativeClient{a, b}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), llm.Request{})
	require.Error(t, err)
	require.ErrorIs(t, err, errB)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}

func TestCompositeFirstGoodResponseShortCircuits(t *testing.T) {
	a := &scriptedClient{name: "A", resp: "good"}
	b := &scriptedClient{name: "B", resp: "also good"}

	c, err := New("chain", []llm.GenerativeClient{a, b}, zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), llm.Request{})
	require.NoError(t, err)
	require.Equal(t, "good", resp)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 0, b.calls)
}

func TestCompositeShuffleDistributesFirstTry(t *testing.T) {
	const trials = 10000
	const n = 4

	wins := make(map[string]int, n)
	for trial := 0; trial < trials; trial++ {
		clients := make([]llm.GenerativeClient, n)
		tracked := make([]*scriptedClient, n)
		for i := 0; i < n; i++ {
			sc := &scriptedClient{name: string(rune('A' + i)), resp: "ok"}
			tracked[i] = sc
			clients[i] = sc
		}

		c, err := New("shuffle", clients, zap.NewNop(), WithShuffle(true))
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), llm.Request{})
		require.NoError(t, err)

		for _, sc := range tracked {
			if sc.calls == 1 {
				wins[sc.name]++
				break
			}
		}
	}

	require.Len(t, wins, n, "every client must win first-try at least once across %d trials", trials)
	expected := float64(trials) / float64(n)
	for name, count := range wins {
		ratio := float64(count) / expected
		require.InDeltaf(t, 1.0, ratio, 0.15, "client %s won %d/%d trials, expected ~%.0f", name, count, trials, expected)
	}
}
