// Package generator implements the per-route response generators the
// router dispatches to: FAMOUS, GENERAL, and FACT each supply a
// router.RouteDescriptor and a Generate method taking the extracted
// parameters, the rendered conversation, and the per-participant memory
// block. WISDOM, DEVILS_ADVOCATE, and JOKE are invoked directly by the
// chat-gateway layer rather than through the router, matching the
// original's separate (non-routed) wiring of those three.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("urmombot/generator")

// FamousGenerator answers the FAMOUS route: impersonate a named person,
// replying in character to the conversation.
type FamousGenerator struct {
	client     llm.GenerativeClient // composite-wrapped impersonation backend
	postprocess *postprocess.Processor
	logger     *zap.Logger
}

// NewFamousGenerator builds a FamousGenerator over an already-composed
// generation client and the shared post-processor.
func NewFamousGenerator(client llm.GenerativeClient, proc *postprocess.Processor, logger *zap.Logger) *FamousGenerator {
	return &FamousGenerator{
		client:      client,
		postprocess: proc,
		logger:      logger.With(zap.String("component", "generator_famous")),
	}
}

func (g *FamousGenerator) RouteDescription() string {
	return `FAMOUS: For celebrity/character impersonation and roleplay requests
- ONLY for hypothetical scenarios asking what someone WOULD say/do
- Examples: "What would Trump say about this?", "How would Darth Vader respond?", "What if Einstein explained this?"
- Key indicators: "would", "if", hypothetical phrasing
- NOT for factual questions about what someone actually said/did`
}

func (g *FamousGenerator) ParameterSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Famous person impersonation parameters").
		AddProperty("famous_person", types.NewStringSchema().WithDescription("name of the person, real or fictional, to impersonate")).
		AddRequired("famous_person")
}

func (g *FamousGenerator) ParameterExtractionPrompt() string {
	return `Extract the famous person's name from the user message.

Examples:
- "What would Trump say?" -> famous_person: "Trump"
- "How would Darth Vader respond?" -> famous_person: "Darth Vader"
- "What if Einstein explained this?" -> famous_person: "Einstein"
- "What would Jesus say if he spoke like Trump?" -> famous_person: "Jesus"

Extract the person's name (can be real celebrities, fictional characters, historical figures).`
}

// Generate produces the in-character reply for person, given extractedMessage
// (the triggering message with bot-addressing stripped) and the rendered
// <conversation_history> block the formatter produced.
func (g *FamousGenerator) Generate(ctx context.Context, person, languageName, extractedMessage, conversationBlock string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.famous")
	defer span.End()

	prompt := fmt.Sprintf(famousPromptTemplate, person, person, person, person, extractedMessage, languageName, conversationBlock)

	raw, err := g.client.Generate(ctx, llm.Request{SystemPrompt: prompt})
	if err != nil {
		return "", fmt.Errorf("famous generator: %w", err)
	}

	complete := fmt.Sprintf("**%s would say:**\n\n%s", titleCase(person), raw)
	return g.postprocess.Process(ctx, complete), nil
}

// titleCase upper-cases the first rune of each whitespace-separated word
// for displaying the impersonated name.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

const famousPromptTemplate = `You are %s. Generate a response as if you were %s,
using their communication style, beliefs, values, and knowledge.
Make the response thoughtful, authentic to %s's character, and relevant to the conversation.
Stay in character completely and respond directly as %s would.
Keep your response length similar to the average message length in the conversation.
The user specifically asked: '%s'
Your response should be in the form of direct speech -- exactly as if they are speaking directly, without quotation marks or attributions.

Always respond in %s unless the user specifically requests a different language or translation.

Keep responses under 2000 characters due to Discord's message limit but no need to report on the length of the response.

Here is the conversation context:
%s`
