package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gruzilkin/urmom-bot-sub000/internal/store"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/router"

	"go.uber.org/zap"
)

const jokeBasePrompt = `You are a chatbot that receives a message and you should generate a "ur mom" joke.
Response should be fully in the language of the user message, including translating "your mom"/"ur mom" into the user's language.
The joke follows the pattern of replacing the subject or the object in a phrase with "ur mom" without adding much extra detail.
Keep it to around a single sentence, dropping irrelevant parts of the original message to keep the joke shorter.
Make it as lewd and preposterous as possible, carefully replacing the subject and/or objects to achieve the most outrageous result.
Make sure the joke is grammatically correct: check subject-verb agreement and update pronouns after replacing subjects and objects.`

const countryJokePromptTemplate = `You are a chat bot and you need to turn a user message into a country joke.
Your response should only contain the joke itself and it should start with 'In %s'.
Response should be fully in the language of the user message, including translating the country name into the user's language.
Apply stereotypes and cliches about the country.`

const isJokePromptTemplate = `Tell me if the response is a joke, a wordplay or a sarcastic remark to the original message, reply in English with only yes or no:
original message: %s
response: %s
No? Think again carefully. The response might be a joke, wordplay, or sarcastic remark.
Is it actually a joke? Reply only yes or no.`

const isJokeSystemPrompt = "You are a joke detection AI. Respond only with 'yes' or 'no'."

// JokeGenerator turns a message into an "ur mom" joke, few-shotted against a
// weighted sample of past jokes in the target language, and separately
// detects whether a given reply is itself a joke worth recording. Invoked
// directly by the chat-gateway layer's reaction handler (a clown or
// country-flag reaction for generation, any other reaction on a reply for
// detection), not dispatched by the router.
type JokeGenerator struct {
	client      llm.GenerativeClient
	detectClient llm.GenerativeClient // plain yes/no backend, no few-shot needed
	store       *store.Store
	detector    *router.LanguageDetector
	sampleCount int
	exponent    float64
	logger      *zap.Logger

	mu        sync.Mutex
	jokeCache map[string]bool // message id -> is-joke, held for the process lifetime
}

// NewJokeGenerator builds a JokeGenerator sampling sampleCount past jokes
// weighted by exponent^reaction_count (config joke.pool_size/joke.exponent).
func NewJokeGenerator(client, detectClient llm.GenerativeClient, st *store.Store, detector *router.LanguageDetector, sampleCount int, exponent float64, logger *zap.Logger) *JokeGenerator {
	return &JokeGenerator{
		client:       client,
		detectClient: detectClient,
		store:        st,
		detector:     detector,
		sampleCount:  sampleCount,
		exponent:     exponent,
		logger:       logger.With(zap.String("component", "generator_joke")),
		jokeCache:    make(map[string]bool),
	}
}

// GenerateJoke answers content with an "ur mom" joke in language, few-shotted
// against a weighted sample of the (guild-wide) joke pool in that language.
func (g *JokeGenerator) GenerateJoke(ctx context.Context, content, languageCode string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.joke")
	defer span.End()

	samples, err := g.store.GetRandomJokes(ctx, g.sampleCount, languageCode, g.exponent)
	if err != nil {
		return "", fmt.Errorf("joke generator: sample pool: %w", err)
	}

	pairs := make([]llm.FewShotPair, len(samples))
	for i, s := range samples {
		pairs[i] = llm.FewShotPair{Input: s.SourceContent, Output: s.JokeContent}
	}

	raw, err := g.client.Generate(ctx, llm.Request{
		Message:      content,
		SystemPrompt: jokeBasePrompt,
		FewShotPairs: pairs,
	})
	if err != nil {
		return "", fmt.Errorf("joke generator: generate: %w", err)
	}
	return raw, nil
}

// GenerateCountryJoke turns message into a stereotype joke about country.
func (g *JokeGenerator) GenerateCountryJoke(ctx context.Context, message, country string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.country_joke")
	defer span.End()

	raw, err := g.client.Generate(ctx, llm.Request{
		Message:      message,
		SystemPrompt: fmt.Sprintf(countryJokePromptTemplate, country),
	})
	if err != nil {
		return "", fmt.Errorf("joke generator: country joke: %w", err)
	}
	return raw, nil
}

// IsJoke reports whether responseMessage reads as a joke/wordplay/sarcastic
// remark to originalMessage, caching the verdict by messageID for the
// process lifetime so repeated reaction events don't re-ask the model.
func (g *JokeGenerator) IsJoke(ctx context.Context, originalMessage, responseMessage, messageID string) bool {
	if messageID != "" {
		g.mu.Lock()
		cached, ok := g.jokeCache[messageID]
		g.mu.Unlock()
		if ok {
			return cached
		}
	}

	ctx, span := tracer.Start(ctx, "generator.is_joke")
	defer span.End()

	raw, err := g.detectClient.Generate(ctx, llm.Request{
		Message:      fmt.Sprintf(isJokePromptTemplate, originalMessage, responseMessage),
		SystemPrompt: isJokeSystemPrompt,
	})
	result := false
	if err != nil {
		g.logger.Warn("joke detection failed, defaulting to not-a-joke", zap.Error(err))
	} else {
		answer := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), ".,!?"))
		result = answer == "yes"
	}

	if messageID != "" {
		g.mu.Lock()
		g.jokeCache[messageID] = result
		g.mu.Unlock()
	}
	return result
}

// SaveJoke detects both messages' languages and persists the (source, joke)
// pair and its reaction count.
func (g *JokeGenerator) SaveJoke(ctx context.Context, sourceMessageID, jokeMessageID int64, sourceContent, jokeContent string, reactionCount int) error {
	sourceLang := g.detector.Detect(ctx, sourceContent)
	jokeLang := g.detector.Detect(ctx, jokeContent)

	if err := g.store.SaveJoke(ctx, sourceMessageID, jokeMessageID, sourceContent, jokeContent, sourceLang, jokeLang, reactionCount); err != nil {
		return fmt.Errorf("joke generator: save: %w", err)
	}
	return nil
}
