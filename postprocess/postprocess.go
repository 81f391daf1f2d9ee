// Package postprocess implements the response post-processor: shrink an
// over-long reply to fit the host chat platform's message limit, summarizing
// first and truncating only as a last resort.
package postprocess

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("urmombot/postprocess")

const summarizationTemperature = 0.1

// Processor shrinks replies that exceed the platform's character limit.
type Processor struct {
	client llm.GenerativeClient // dedicated summarizing backend (gemma in production)
	limit  int
	logger *zap.Logger
}

// NewProcessor builds a Processor targeting limit characters (2000 for the
// deployed chat service).
func NewProcessor(client llm.GenerativeClient, limit int, logger *zap.Logger) *Processor {
	return &Processor{
		client: client,
		limit:  limit,
		logger: logger.With(zap.String("component", "postprocess")),
	}
}

// Process returns response unchanged if it already fits the limit. Otherwise
// it asks the summarizing backend for a reply of roughly 90% of the limit,
// rounded down to the nearest hundred characters, preserving tone; if the
// summary still overruns or the call fails, it falls back to a hard
// truncation with a trailing ellipsis.
func (p *Processor) Process(ctx context.Context, response string) string {
	if utf8.RuneCountInString(response) <= p.limit {
		return response
	}

	ctx, span := tracer.Start(ctx, "postprocess.process")
	defer span.End()

	targetLength := (p.limit * 9 / 10 / 100) * 100

	summarized, err := p.summarize(ctx, response, targetLength)
	if err != nil {
		p.logger.Warn("summarization failed, falling back to truncation", zap.Error(err))
		return p.truncate(response)
	}
	if utf8.RuneCountInString(summarized) > p.limit {
		p.logger.Warn("summary still exceeds limit, falling back to truncation",
			zap.Int("summary_length", utf8.RuneCountInString(summarized)))
		return p.truncate(response)
	}
	return summarized
}

func (p *Processor) summarize(ctx context.Context, response string, targetLength int) (string, error) {
	prompt := fmt.Sprintf(summarizePromptTemplate, targetLength, targetLength)
	req := llm.Request{
		Message:      "Please summarize the response provided in the system prompt.",
		SystemPrompt: prompt + "\n\nOriginal response to summarize:\n" + response,
		Temperature:  summarizationTemperature,
	}
	out, err := p.client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("postprocess: summarizer returned empty response")
	}
	return out, nil
}

func (p *Processor) truncate(response string) string {
	runes := []rune(response)
	if len(runes) <= p.limit {
		return response
	}
	return string(runes[:p.limit-3]) + "..."
}

const summarizePromptTemplate = `Summarize the following response to approximately %d characters while preserving all key information, main points, and the original tone.

The summary should be comprehensive and maintain the same style as the original response. Aim for close to %d characters -- use the full space available to provide a detailed summary. Do not add any meta-commentary about the summarization process.`
