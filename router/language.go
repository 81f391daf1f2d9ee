package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"go.uber.org/zap"
)

var languageCodePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2,4})?$`)

// LanguageDetector resolves a message's primary language and that
// language's full English name via a single schema-typed provider, caching
// resolved names per code -- an offline pre-check library has no equivalent
// in this stack
// (see DESIGN.md), so every call goes through the LLM path it fell back to.
// Shared between the router's Tier 1 pass and any other component needing
// the same capability (the joke generator's language tagging, for instance).
type LanguageDetector struct {
	client llm.GenerativeClient
	logger *zap.Logger

	mu    sync.Mutex
	names map[string]string
}

// NewLanguageDetector builds a LanguageDetector over a schema-typed client.
func NewLanguageDetector(client llm.GenerativeClient, logger *zap.Logger) *LanguageDetector {
	return &LanguageDetector{
		client: client,
		logger: logger.With(zap.String("component", "language_detector")),
		names: map[string]string{
			"en": "English",
			"zh": "Chinese",
			"es": "Spanish",
			"fr": "French",
			"ru": "Russian",
			"ja": "Japanese",
		},
	}
}

const languageDetectionPrompt = `Analyze the text and determine its primary language. Return only the ISO 639-1 code.

IMPORTANT INSTRUCTIONS:
1. If the text uses Cyrillic letters and is ambiguous, gravitate towards Russian ('ru').
2. If the text uses Latin letters and is ambiguous (e.g., "ok", "ciao"), gravitate towards English ('en') or the most common language (e.g., Italian 'it' for "ciao").`

// Detect returns the ISO 639-1 code for text's primary language, defaulting
// to "en" on any detection failure or on a malformed code from the model.
func (d *LanguageDetector) Detect(ctx context.Context, text string) string {
	req := llm.Request{
		Message:      text,
		SystemPrompt: languageDetectionPrompt,
		Temperature:  0,
	}
	result, err := llm.GenerateStructured[languageCodeResult](ctx, d.client, req, languageCodeSchema())
	if err != nil {
		d.logger.Warn("language detection failed, defaulting to en", zap.Error(err))
		return "en"
	}

	code := strings.ToLower(strings.TrimSpace(result.LanguageCode))
	if !languageCodePattern.MatchString(code) {
		d.logger.Warn("invalid language code from model, defaulting to en", zap.String("code", code))
		return "en"
	}
	return code
}

const languageNamePromptTemplate = "What is the full name of the language with ISO 639-1 code '%s'? Provide the language name in English (e.g., 'German' for 'de', 'Russian' for 'ru')."

// Name resolves code to its full English name, consulting a small in-process
// cache seeded with the most common codes before falling back to the model.
func (d *LanguageDetector) Name(ctx context.Context, code string) string {
	d.mu.Lock()
	if cached, ok := d.names[code]; ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	req := llm.Request{
		Message:      "Language code: " + code,
		SystemPrompt: fmt.Sprintf(languageNamePromptTemplate, code),
		Temperature:  0,
	}
	result, err := llm.GenerateStructured[languageNameResult](ctx, d.client, req, languageNameSchema())
	if err != nil {
		d.logger.Warn("language name resolution failed", zap.String("code", code), zap.Error(err))
		return "Language-" + code
	}

	name := strings.TrimSpace(result.LanguageName)
	d.mu.Lock()
	d.names[code] = name
	d.mu.Unlock()
	return name
}
