package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"

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

func newTestProcessor(client llm.GenerativeClient) *postprocess.Processor {
	return postprocess.NewProcessor(client, 2000, zap.NewNop())
}

func TestFamousGeneratorStaysInCharacter(t *testing.T) {
	client := &fakeClient{name: "claude", reply: func(req llm.Request) (string, error) {
		require.Contains(t, req.SystemPrompt, "You are Einstein.")
		require.Contains(t, req.SystemPrompt, "Always respond in German")
		require.Contains(t, req.SystemPrompt, "<message>")
		return "Energy equals mass times the speed of light squared, obviously.", nil
	}}
	g := NewFamousGenerator(client, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	out, err := g.Generate(context.Background(), "Einstein", "German", "explain relativity", "<message><id>1</id></message>")
	require.NoError(t, err)
	require.Contains(t, out, "**Einstein would say:**")
	require.Contains(t, out, "Energy equals mass")
}

func TestFamousGeneratorTitleCasesMultiWordName(t *testing.T) {
	client := &fakeClient{name: "claude", reply: func(req llm.Request) (string, error) {
		return "I find your lack of faith disturbing.", nil
	}}
	g := NewFamousGenerator(client, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	out, err := g.Generate(context.Background(), "darth vader", "English", "what do you think", "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "**Darth Vader would say:**"))
}

func TestFamousGeneratorPropagatesClientError(t *testing.T) {
	client := &fakeClient{name: "claude", reply: func(req llm.Request) (string, error) {
		return "", llm.NewBlockedError("claude", "blocked")
	}}
	g := NewFamousGenerator(client, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	_, err := g.Generate(context.Background(), "Trump", "English", "hello", "")
	require.Error(t, err)
}
