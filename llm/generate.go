package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/internal/ctxkeys"
	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"
	"github.com/gruzilkin/urmom-bot-sub000/types"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// FewShotPair is a single (input, output) example, sent to every provider as
// a user turn followed by an assistant turn in the message history (see
// AdapterCapabilities).
type FewShotPair struct {
	Input  string
	Output string
}

// Request describes a single generate_content-style call: one user message,
// an optional system prompt, optional few-shot examples, optional grounding
// (provider-native web search), an optional response schema the caller wants
// JSON back in, and an optional single image attachment.
type Request struct {
	Message         string
	SystemPrompt    string
	FewShotPairs    []FewShotPair
	EnableGrounding bool
	ResponseSchema  *types.JSONSchema
	Temperature     float32
	Image           *types.ImageContent
}

// GenerativeClient is the single-call generation contract every backend
// (gemini_flash, gemma, claude, grok, codex) and every decorator (retry,
// composite) implements. Providers that only expose the richer Provider
// interface are adapted to this via CompletionAdapter.
type GenerativeClient interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// NewBlockedError builds the distinct Blocked error the retry decorator must
// never retry and the composite must still treat as a fallback trigger.
func NewBlockedError(provider, message string) *Error {
	return &Error{Code: ErrBlocked, Message: message, Provider: provider}
}

// IsBlocked reports whether err is (or wraps) a Blocked error.
func IsBlocked(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrBlocked
	}
	return false
}

const maxSchemaRetries = 2

// GenerateStructured issues req against client, instructing the model (via
// an instruction appended to the system prompt) to answer with JSON matching
// schema, then unmarshals the response into T. Markdown code fences wrapped
// around the JSON payload are stripped before parsing. On a parse failure the
// call is retried up to maxSchemaRetries times with an escalating correction
// instruction before giving up with ErrSchemaValidation. A Blocked error from
// the underlying client is never retried here -- it propagates immediately so
// composite fallback (if any) can take over.
func GenerateStructured[T any](ctx context.Context, client GenerativeClient, req Request, schema *types.JSONSchema) (T, error) {
	var zero T

	schemaJSON, err := schema.ToJSON()
	if err != nil {
		return zero, fmt.Errorf("marshal response schema: %w", err)
	}

	req.ResponseSchema = schema
	basePrompt := req.SystemPrompt

	var lastErr error
	for attempt := 0; attempt <= maxSchemaRetries; attempt++ {
		callReq := req
		callReq.SystemPrompt = basePrompt + schemaInstruction(schemaJSON, attempt, lastErr)

		raw, err := client.Generate(ctx, callReq)
		if err != nil {
			return zero, err
		}

		cleaned := stripCodeFence(raw)

		var result T
		if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
			lastErr = err
			continue
		}

		return result, nil
	}

	return zero, &Error{
		Code:     ErrSchemaValidation,
		Message:  fmt.Sprintf("response did not conform to schema after %d attempts: %v", maxSchemaRetries+1, lastErr),
		Provider: client.Name(),
	}
}

func schemaInstruction(schemaJSON []byte, attempt int, lastErr error) string {
	var b strings.Builder
	b.WriteString("\n\nRespond with a single JSON object matching this schema, and nothing else:\n")
	b.Write(schemaJSON)
	if attempt > 0 {
		fmt.Fprintf(&b, "\n\nYour previous response could not be parsed as JSON matching the schema (%v). Reply again with only the corrected JSON object.", lastErr)
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// AdapterCapabilities declares which Request options a wrapped Provider can
// honor natively. CompletionAdapter rejects grounding or an image the
// provider cannot honor with ErrUnsupportedOption; for FewShotPairs on a
// provider without native few-shot support it only logs a warning, and the
// examples still go out as message-history turns.
type AdapterCapabilities struct {
	SupportsGrounding bool
	SupportsImages    bool
	SupportsFewShot   bool
}

// CompletionAdapter adapts an existing Provider.Completion surface to the
// single-call GenerativeClient contract used by the decorators and the
// generators,
// recording per-call latency, outcome and token counts on the way through.
type CompletionAdapter struct {
	provider Provider
	caps     AdapterCapabilities
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewCompletionAdapter wraps provider so it satisfies GenerativeClient.
// metricsCollector may be nil, which disables per-call instrumentation.
func NewCompletionAdapter(provider Provider, caps AdapterCapabilities, metricsCollector *metrics.Collector, logger *zap.Logger) *CompletionAdapter {
	return &CompletionAdapter{provider: provider, caps: caps, metrics: metricsCollector, logger: logger}
}

func (a *CompletionAdapter) Name() string { return a.provider.Name() }

// Generate folds req's fields into a ChatRequest and delegates to the
// wrapped Provider's Completion method.
func (a *CompletionAdapter) Generate(ctx context.Context, req Request) (string, error) {
	if req.EnableGrounding && !a.caps.SupportsGrounding {
		return "", &Error{Code: ErrUnsupportedOption, Message: "provider does not support grounding", Provider: a.Name()}
	}
	if req.Image != nil && !a.caps.SupportsImages {
		return "", &Error{Code: ErrUnsupportedOption, Message: "provider does not support image input", Provider: a.Name()}
	}
	if len(req.FewShotPairs) > 0 && !a.caps.SupportsFewShot {
		a.logger.Warn("provider does not support native few-shot examples; folding them into message history",
			zap.String("provider", a.Name()))
	}

	messages := make([]Message, 0, len(req.FewShotPairs)*2+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}
	for _, pair := range req.FewShotPairs {
		messages = append(messages, Message{Role: RoleUser, Content: pair.Input})
		messages = append(messages, Message{Role: RoleAssistant, Content: pair.Output})
	}

	last := Message{Role: RoleUser, Content: req.Message}
	if req.Image != nil {
		last.Images = []ImageContent{*req.Image}
	}
	messages = append(messages, last)

	chatReq := &ChatRequest{
		Messages:        messages,
		Temperature:     req.Temperature,
		EnableGrounding: req.EnableGrounding,
	}
	if traceID, ok := ctxkeys.TraceID(ctx); ok {
		chatReq.TraceID = traceID
	}
	if guildID, ok := ctxkeys.GuildID(ctx); ok {
		chatReq.TenantID = guildID
	}
	if userID, ok := ctxkeys.UserID(ctx); ok {
		chatReq.UserID = userID
	}

	start := time.Now()
	resp, err := a.provider.Completion(ctx, chatReq)
	if err != nil {
		status := "error"
		if IsBlocked(err) {
			status = "blocked"
		}
		a.record("unknown", status, start, 0, 0)
		return "", err
	}
	if len(resp.Choices) == 0 {
		a.record(resp.Model, "error", start, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return "", &Error{Code: ErrUpstreamError, Message: "provider returned no choices", Provider: a.Name()}
	}
	content := resp.Choices[0].Message.Content
	if isBlockedFinishReason(resp.Choices[0].FinishReason) {
		a.record(resp.Model, "blocked", start, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return "", NewBlockedError(a.Name(), "response blocked by provider safety filter")
	}

	promptTokens, completionTokens := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if promptTokens == 0 && completionTokens == 0 {
		// Some backends omit usage; estimate so the token metric stays useful.
		promptTokens = estimateTokens(req.SystemPrompt + req.Message)
		completionTokens = estimateTokens(content)
	}
	a.record(resp.Model, "success", start, promptTokens, completionTokens)

	return content, nil
}

func (a *CompletionAdapter) record(model, status string, start time.Time, promptTokens, completionTokens int) {
	if a.metrics == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	a.metrics.RecordLLMRequest(a.Name(), model, status, time.Since(start), promptTokens, completionTokens)
}

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

// estimateTokens approximates a token count with the cl100k_base encoding
// when the provider did not report usage. Returns 0 when the encoding is
// unavailable (e.g. no network to fetch the BPE ranks) -- the metric is
// best-effort, never a call blocker.
func estimateTokens(text string) int {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenEncoder = enc
		}
	})
	if tokenEncoder == nil || text == "" {
		return 0
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func isBlockedFinishReason(reason string) bool {
	switch strings.ToLower(reason) {
	case "content_filter", "safety", "blocked", "recitation":
		return true
	default:
		return false
	}
}
