package generator

import (
	"context"
	"fmt"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/llm/composite"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"go.uber.org/zap"
)

// generalFallbackOrder is the fixed fallback order appended after the
// ai_backend-selected primary. codex is not in it: codex answers only when
// ai_backend names it, which the extraction prompt below reserves for an
// explicit request.
var generalFallbackOrder = []string{"gemini_flash", "claude", "grok", "gemma"}

// GeneralGenerator answers the GENERAL route: a direct AI query against a
// caller-selected backend, escalating through a fixed fallback chain if that
// backend's composite reports a bad response.
type GeneralGenerator struct {
	backends    map[string]llm.GenerativeClient // ai_backend name -> client
	postprocess *postprocess.Processor
	logger      *zap.Logger
}

// NewGeneralGenerator builds a GeneralGenerator over the named backend
// clients; backends must contain an entry for every ai_backend value the
// extraction schema can produce (gemini_flash, grok, claude, gemma, codex).
func NewGeneralGenerator(backends map[string]llm.GenerativeClient, proc *postprocess.Processor, logger *zap.Logger) *GeneralGenerator {
	return &GeneralGenerator{
		backends:    backends,
		postprocess: proc,
		logger:      logger.With(zap.String("component", "generator_general")),
	}
}

func (g *GeneralGenerator) RouteDescription() string {
	return `GENERAL: For valid questions/requests needing AI assistance
- Handles legitimate questions, requests for information, explanations, or help
- Valid queries: "What's the weather?", "Explain quantum physics", "How do I cook pasta?", "What do you remember about John?", "Tell me about user X"
- Context-dependent questions: "What about this?", "How does that work?"
- Factual questions about real people: "What did Trump say?", "Did X say anything interesting?", "What did Marie Curie discover?"
- May contain AI backend specifications such as "ask grok to...", "use claude to...", "have gemini explain..."
- Invalid: Simple reactions like "lol", "nice", "haha that's funny"`
}

func (g *GeneralGenerator) ParameterSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("General AI query parameters").
		AddProperty("ai_backend", types.NewEnumSchema("gemini_flash", "grok", "claude", "gemma", "codex").
			WithDescription("backend to answer the query")).
		AddProperty("temperature", types.NewNumberSchema().WithDescription("sampling temperature in [0, 2]")).
		AddProperty("cleaned_query", types.NewStringSchema().
			WithDescription("user's request with bot-addressing and routing instructions removed")).
		AddRequired("ai_backend", "temperature", "cleaned_query")
}

func (g *GeneralGenerator) ParameterExtractionPrompt() string {
	return `Extract parameters for a general AI query request.

ai_backend selection:
* gemini_flash: General questions, explanations, real-time news/current events
* grok: Creative tasks, uncensored content, wild requests
* claude: Coding help, technical explanations, detailed analysis, complex reasoning, fact-checking and verification questions
* gemma: Do not select unless explicitly requested
* codex: Do not select unless explicitly requested
* Handle explicit requests: "ask grok about...", "use gemini flash for...", "ask claude to..."

temperature selection:
* Use a low temperature (<= 0.3) for factual data, calculations, precise information, technical explanations, or requests for "detailed" plans.
* Use a moderate temperature (0.4-0.6) for balanced responses and general questions.
* Use a high temperature (>= 0.7) for creative writing, brainstorming, "go crazy" requests, and artistic content.

cleaned_query extraction:
* Goal: Produce a clean, direct query for the AI assistant. The user's message will contain a placeholder to refer to the assistant.
* Rule 1: Rephrase the query from the assistant's perspective. Convert the user's request into a direct, second-person command or question.
* Rule 2: Remove routing instructions like 'use gemini', 'be creative', or temperature hints.
* Rule 3: Keep the query in the original language of the user's message -- do not translate.
* Examples:
  - "BOT, what is the capital of France?" -> "what is the capital of France?"
  - "BOT, use gemini to explain this" -> "explain this"
  - "ask grok to write a poem about cats" -> "write a poem about cats"
  - "use gemini flash to explain quantum physics" -> "explain quantum physics"
  - "with high creativity, write a story" -> "write a story"`
}

// Generate selects backend as the primary of a dynamically assembled
// fallback chain (ai_backend first, then the fixed fallback order with
// duplicates and the primary itself removed), and answers cleanedQuery with
// grounding enabled, memories and the rendered conversation folded into the
// system prompt.
func (g *GeneralGenerator) Generate(ctx context.Context, params domain.GeneralParams, memoriesBlock, conversationBlock string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.general")
	defer span.End()

	client, err := g.chainFor(params.AIBackend)
	if err != nil {
		return "", err
	}

	if memoriesBlock == "" {
		memoriesBlock = "No memories about users in this conversation."
	}
	prompt := fmt.Sprintf(generalPromptTemplate, params.LanguageName, memoriesBlock, conversationBlock)

	raw, err := client.Generate(ctx, llm.Request{
		Message:         params.CleanedQuery,
		SystemPrompt:    prompt,
		Temperature:     params.Temperature,
		EnableGrounding: true,
	})
	if err != nil {
		return "", fmt.Errorf("general generator: %w", err)
	}
	if raw == "" {
		g.logger.Warn("backend returned empty response, not replying")
		return "", nil
	}

	return g.postprocess.Process(ctx, raw), nil
}

// chainFor builds a one-shot composite client with backend as the primary
// delegate and the fixed fallback order (minus backend and any unknown
// entries) behind it.
func (g *GeneralGenerator) chainFor(backend string) (llm.GenerativeClient, error) {
	primary, ok := g.backends[backend]
	if !ok {
		return nil, fmt.Errorf("general generator: unknown ai_backend %q", backend)
	}

	delegates := []llm.GenerativeClient{primary}
	for _, name := range generalFallbackOrder {
		if name == backend {
			continue
		}
		if client, ok := g.backends[name]; ok {
			delegates = append(delegates, client)
		}
	}

	return composite.New("general:"+backend, delegates, g.logger)
}

const generalPromptTemplate = `<system_instructions>
You are a helpful AI assistant in a group chat. Your primary role is to bring external knowledge, fresh perspectives, and independent analysis to the conversation.

Core Guidelines:
- Keep responses under 2000 characters due to the chat platform's message limit but no need to report on the length of the response
- Prioritize external knowledge and fresh perspectives over echoing what's already been said in chat
- Don't simply restate opinions or information already expressed in the conversation
- Be comfortable respectfully challenging assumptions or providing alternative viewpoints when relevant
- Bring new information, analysis, and insights that add value to the discussion
- Use conversation context ONLY to understand what you're being asked about, not to repeat or validate existing opinions
- For complex topics, provide a brief summary with key points rather than detailed explanations
- Always respond in %s unless the user specifically requests a different language or translation.
- Provide complete, self-contained responses without follow-up questions or engagement prompts. End responses definitively.

Content Embeddings: Conversation history may contain embedded content in <embedding> tags:
  - <embedding type="image"> contains descriptions of images that users posted -- treat these as if you saw the images yourself
  - <embedding type="article"> contains text from articles/links that users shared
- When users refer to "this image", "that article", "what I posted", or similar, they're likely referring to embedded content
- Integrate information from embeddings naturally into your responses without mentioning the technical tags

Memory Usage:
- Use the provided memories naturally in your responses, as if you simply remember these things about people
- NEVER explicitly mention that you have "memory blocks", "stored information", or "records" about users
- NEVER say phrases like "I know that...", "According to my memory...", "I have information that..."
- Simply incorporate the facts naturally into conversation, like a friend who remembers things about you
</system_instructions>

<memories>
%s
</memories>

%s`
