// Package anthropic implements the Claude LLM provider using the official
// anthropic-sdk-go client, instead of a hand-rolled HTTP transport.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers"
	"go.uber.org/zap"
)

// ClaudeProvider implements llm.Provider for Anthropic's Claude models via
// anthropic-sdk-go. System messages are lifted into the dedicated System
// parameter; base64 image attachments map onto Anthropic's image content
// blocks.
type ClaudeProvider struct {
	cfg    providers.ClaudeConfig
	client anthropicsdk.Client
	logger *zap.Logger
}

// NewClaudeProvider creates a new Claude provider instance.
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &ClaudeProvider{
		cfg:    cfg,
		client: anthropicsdk.NewClient(opts...),
		logger: logger.With(zap.String("component", "claude")),
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

// HealthCheck issues a one-token message, the cheapest request that proves
// both the credentials and the configured model id.
func (p *ClaudeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.modelOrDefault("")),
		MaxTokens: 1,
		Messages:  []anthropicsdk.MessageParam{anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock("ping"))},
	})
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *ClaudeProvider) modelOrDefault(requested string) string {
	if requested != "" {
		return requested
	}
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "claude-sonnet-4-5-20250929"
}

// Completion sends a synchronous message request to Claude.
func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	client := p.client
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok && c.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
		if p.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(p.cfg.BaseURL))
		}
		client = anthropicsdk.NewClient(opts...)
	}

	systemBlocks, messages := convertMessages(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(providers.ChooseModel(req, p.cfg.Model, "claude-sonnet-4-5-20250929")),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = anthropicsdk.Float(float64(req.TopP))
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err, p.Name())
	}

	return toChatResponse(resp, p.Name()), nil
}

func convertMessages(msgs []llm.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam) {
	var system []anthropicsdk.TextBlockParam
	result := make([]anthropicsdk.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if system != nil {
				system[0].Text += "\n\n" + m.Content
				continue
			}
			system = []anthropicsdk.TextBlockParam{{Text: m.Content}}
		case llm.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			blocks := []anthropicsdk.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			// Only inline base64 images carry enough information for the
			// Messages API; url-typed images are resolved upstream.
			for _, img := range m.Images {
				if img.Type != "base64" || img.Data == "" {
					continue
				}
				mediaType := img.MIMEType
				if mediaType == "" {
					mediaType = "image/jpeg"
				}
				blocks = append(blocks, anthropicsdk.NewImageBlockBase64(mediaType, img.Data))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			result = append(result, anthropicsdk.NewUserMessage(blocks...))
		}
	}

	return system, result
}

func toChatResponse(resp *anthropicsdk.Message, provider string) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}

	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			msg.Content += b.Text
		}
	}

	return &llm.ChatResponse{
		ID:       resp.ID,
		Provider: provider,
		Model:    string(resp.Model),
		Choices: []llm.ChatChoice{
			{Index: 0, FinishReason: string(resp.StopReason), Message: msg},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		CreatedAt: time.Now(),
	}
}

// mapAnthropicError maps anthropic-sdk-go's *anthropicsdk.Error into the
// shared *llm.Error taxonomy so the retry and composite decorators can make
// retry/fallback decisions on Code/Retryable rather than on SDK-specific
// error types.
func mapAnthropicError(err error, provider string) error {
	var apiErr *anthropicsdk.Error
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
