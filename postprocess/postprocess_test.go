package postprocess

import (
	"context"
	"strings"
	"testing"

	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	name  string
	reply func(req llm.Request) (string, error)
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Generate(_ context.Context, req llm.Request) (string, error) {
	return c.reply(req)
}

func TestProcessReturnsShortResponseUnchanged(t *testing.T) {
	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		t.Fatal("summarizer should not be called for a short response")
		return "", nil
	}}
	p := NewProcessor(client, 2000, zap.NewNop())

	out := p.Process(context.Background(), "short response")
	require.Equal(t, "short response", out)
}

func TestProcessSummarizesLongResponse(t *testing.T) {
	long := strings.Repeat("a", 2500)
	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		require.Contains(t, req.SystemPrompt, "approximately 1800 characters")
		return strings.Repeat("b", 1500), nil
	}}
	p := NewProcessor(client, 2000, zap.NewNop())

	out := p.Process(context.Background(), long)
	require.Equal(t, strings.Repeat("b", 1500), out)
}

func TestProcessFallsBackToTruncationOnSummaryError(t *testing.T) {
	long := strings.Repeat("a", 2500)
	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		return "", assertError{}
	}}
	p := NewProcessor(client, 2000, zap.NewNop())

	out := p.Process(context.Background(), long)
	require.Len(t, out, 2000)
	require.True(t, strings.HasSuffix(out, "..."))
}

func TestProcessFallsBackToTruncationWhenSummaryStillTooLong(t *testing.T) {
	long := strings.Repeat("a", 2500)
	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		return strings.Repeat("b", 2200), nil
	}}
	p := NewProcessor(client, 2000, zap.NewNop())

	out := p.Process(context.Background(), long)
	require.Len(t, out, 2000)
	require.True(t, strings.HasSuffix(out, "..."))
}

func TestProcessFallsBackToTruncationOnEmptySummary(t *testing.T) {
	long := strings.Repeat("a", 2500)
	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		return "   ", nil
	}}
	p := NewProcessor(client, 2000, zap.NewNop())

	out := p.Process(context.Background(), long)
	require.Len(t, out, 2000)
	require.True(t, strings.HasSuffix(out, "..."))
}

type assertError struct{}

func (assertError) Error() string { return "summarization failed" }
