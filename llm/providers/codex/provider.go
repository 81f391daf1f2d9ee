// Package codex implements the OpenAI Codex provider using the official
// openai-go/v3 client against the plain Chat Completions surface (not the
// Responses API, which Codex's own restrictions -- no previous_response_id,
// no stored state -- make unnecessary for a single-turn caller like this one).
package codex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"go.uber.org/zap"
)

// CodexProvider implements llm.Provider for OpenAI's Codex models.
type CodexProvider struct {
	cfg    providers.CodexConfig
	client openai.Client
	logger *zap.Logger
}

// NewCodexProvider creates a new Codex provider instance.
func NewCodexProvider(cfg providers.CodexConfig, logger *zap.Logger) *CodexProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &CodexProvider{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger.With(zap.String("component", "codex")),
	}
}

func (p *CodexProvider) Name() string { return "codex" }

func (p *CodexProvider) modelOrDefault(requested string) string {
	if requested != "" {
		return requested
	}
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "gpt-5.2-codex"
}

// HealthCheck issues a one-token completion, the cheapest request that
// proves both the credentials and the configured model id.
func (p *CodexProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.modelOrDefault("")),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
	})
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion sends a synchronous chat completion request to Codex.
func (p *CodexProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	client := p.client
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok && c.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
		if p.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(p.cfg.BaseURL))
		}
		client = openai.NewClient(opts...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(providers.ChooseModel(req, p.cfg.Model, "gpt-5.2-codex")),
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = param.NewOpt(float64(req.TopP))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapCodexError(err, p.Name())
	}

	return toChatResponse(resp, p.Name()), nil
}

func convertMessages(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			result = append(result, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			result = append(result, openai.AssistantMessage(m.Content))
		default:
			result = append(result, openai.UserMessage(m.Content))
		}
	}
	return result
}

func toChatResponse(resp *openai.ChatCompletion, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(resp.Choices))
	for i, c := range resp.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        i,
			FinishReason: string(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		})
	}

	return &llm.ChatResponse{
		ID:       resp.ID,
		Provider: provider,
		Model:    resp.Model,
		Choices:  choices,
		Usage: llm.ChatUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		CreatedAt: time.Now(),
	}
}

// mapCodexError maps openai-go's *openai.Error into the shared *llm.Error
// taxonomy so the retry and composite decorators can make retry/fallback
// decisions on Code/Retryable rather than on SDK-specific error types.
func mapCodexError(err error, provider string) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   err.Error(),
			Retryable: true,
			Provider:  provider,
			Cause:     err,
		}
	}

	return providers.MapHTTPError(apiErr.StatusCode, fmt.Sprintf("%v", apiErr), provider)
}
