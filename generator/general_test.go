package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func backendSet(t *testing.T) map[string]llm.GenerativeClient {
	t.Helper()
	return map[string]llm.GenerativeClient{
		"gemini_flash": &fakeClient{name: "gemini_flash", reply: func(req llm.Request) (string, error) {
			return "gemini answer", nil
		}},
		"claude": &fakeClient{name: "claude", reply: func(req llm.Request) (string, error) {
			return "", errors.New("claude down")
		}},
		"grok": &fakeClient{name: "grok", reply: func(req llm.Request) (string, error) {
			return "grok answer", nil
		}},
		"gemma": &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
			return "gemma answer", nil
		}},
	}
}

func TestGeneralGeneratorUsesSelectedBackend(t *testing.T) {
	backends := backendSet(t)
	g := NewGeneralGenerator(backends, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	out, err := g.Generate(context.Background(), domain.GeneralParams{
		AIBackend:    "gemini_flash",
		Temperature:  0.5,
		CleanedQuery: "explain quantum physics",
		LanguageName: "English",
	}, "", "<conversation/>")
	require.NoError(t, err)
	require.Equal(t, "gemini answer", out)
}

func TestGeneralGeneratorFallsBackWhenPrimaryFails(t *testing.T) {
	backends := backendSet(t)
	g := NewGeneralGenerator(backends, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	out, err := g.Generate(context.Background(), domain.GeneralParams{
		AIBackend:    "claude",
		Temperature:  0.3,
		CleanedQuery: "debug this function",
		LanguageName: "English",
	}, "<memory/>", "<conversation/>")
	require.NoError(t, err)
	require.Equal(t, "gemini answer", out) // next in the fixed fallback order after claude
}

func TestGeneralGeneratorRejectsUnknownBackend(t *testing.T) {
	backends := backendSet(t)
	g := NewGeneralGenerator(backends, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	_, err := g.Generate(context.Background(), domain.GeneralParams{
		AIBackend:    "codex",
		Temperature:  0.3,
		CleanedQuery: "write code",
		LanguageName: "English",
	}, "", "")
	require.Error(t, err)
}

func TestGeneralGeneratorEmptyResponseIsNotAnError(t *testing.T) {
	backends := map[string]llm.GenerativeClient{
		"gemini_flash": &fakeClient{name: "gemini_flash", reply: func(req llm.Request) (string, error) {
			return "", nil
		}},
	}
	g := NewGeneralGenerator(backends, newTestProcessor(&fakeClient{name: "gemma"}), zap.NewNop())

	out, err := g.Generate(context.Background(), domain.GeneralParams{
		AIBackend:    "gemini_flash",
		Temperature:  0.3,
		CleanedQuery: "hello",
		LanguageName: "English",
	}, "", "")
	require.NoError(t, err)
	require.Empty(t, out)
}
