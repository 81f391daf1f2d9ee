package generator

import (
	"context"
	"fmt"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/store"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"go.uber.org/zap"
)

// FactGenerator answers the FACT route: imperative remember/forget commands
// that mutate a user's durable fact blob.
type FactGenerator struct {
	client   llm.GenerativeClient // deterministic merge/removal backend (gemma in production)
	store    *store.Store
	resolver domain.UserResolver
	logger   *zap.Logger
}

// NewFactGenerator builds a FactGenerator over the fact-merge client, the
// durable store, and the mention resolver.
func NewFactGenerator(client llm.GenerativeClient, st *store.Store, resolver domain.UserResolver, logger *zap.Logger) *FactGenerator {
	return &FactGenerator{
		client:   client,
		store:    st,
		resolver: resolver,
		logger:   logger.With(zap.String("component", "generator_fact")),
	}
}

func (g *FactGenerator) RouteDescription() string {
	return `FACT: For imperative memory operations (remember/forget facts about users)
- Strictly for COMMANDS that instruct the bot to store or remove facts
- Must be imperative sentences (giving orders/instructions)
- Questions are NOT fact operations -- route questions to GENERAL regardless of content

Examples:
  * "Bot remember that gruzilkin is Sergey"
  * "Bot, remember this about Florent: he likes pizza"
  * "Bot forget that gruzilkin likes pizza"
  * "remember <@987654321098765432> works at TechCorp"
  * "forget <@123456789012345678>'s birthday"

Non-examples (NOT a FACT request -- these are GENERAL queries):
- "What do you remember about X?" (question about memory)
- "Does John like apples?"
- "What is X's name?"
- "What food does <@123456789012345678> like?"`
}

func (g *FactGenerator) ParameterSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Memory fact operation parameters").
		AddProperty("operation", types.NewEnumSchema("remember", "forget").
			WithDescription("remember to store a fact, forget to remove a fact")).
		AddProperty("user_mention", types.NewStringSchema().WithDescription("Discord-style mention, raw user id, or nickname")).
		AddProperty("fact_content", types.NewStringSchema().
			WithDescription("the fact to remember or forget, converted to third-person perspective")).
		AddRequired("operation", "user_mention", "fact_content")
}

func (g *FactGenerator) ParameterExtractionPrompt() string {
	return `Extract parameters for a memory fact operation (remember/forget).

CRITICAL: Only extract parameters if the message is an IMPERATIVE SENTENCE commanding the bot to store/remove facts.
DO NOT extract parameters for ANY QUESTION.

operation: "remember" or "forget" based on an EXPLICIT and IMPERATIVE command.
user_mention: Extract user reference (mention token, raw id, or nickname)
fact_content: The specific fact to remember or forget, converted to third-person perspective using appropriate pronouns. This can be extracted both from the user message and inferred from the conversation history.

Questions are never fact operations:
- "What do you remember about X?" -> NOT a fact operation
- Any question -> do NOT extract

Examples:
- "Bot remember that gruzilkin is Sergey" -> operation: "remember", user_mention: "gruzilkin", fact_content: "He is Sergey"
- "Bot, remember this about Florent: he likes pizza" -> operation: "remember", user_mention: "Florent", fact_content: "he likes pizza"
- "Bot forget that <@1333878858138652682> likes pizza" -> operation: "forget", user_mention: "1333878858138652682", fact_content: "they like pizza"
- "remember Florent works at Google" -> operation: "remember", user_mention: "Florent", fact_content: "they work at Google"
- "Bot remember I live in Tokyo" (about speaker) -> operation: "remember", user_mention: "[infer from context]", fact_content: "they live in Tokyo"

For fact_content conversion to third-person perspective, use appropriate third person forms for the language when gender is unknown.`
}

// memoryUpdateResult is the schema-typed answer for a remember operation.
type memoryUpdateResult struct {
	UpdatedMemory       string `json:"updated_memory"`
	ConfirmationMessage string `json:"confirmation_message"`
}

func memoryUpdateSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Updated memory blob after incorporating new information").
		AddProperty("updated_memory", types.NewStringSchema().WithDescription("the updated memory blob after incorporating new information")).
		AddProperty("confirmation_message", types.NewStringSchema().WithDescription("brief confirmation message for the user in their language")).
		AddRequired("updated_memory", "confirmation_message")
}

// memoryForgetResult is the schema-typed answer for a forget operation.
type memoryForgetResult struct {
	UpdatedMemory       string `json:"updated_memory"`
	FactFound           bool   `json:"fact_found"`
	ConfirmationMessage string `json:"confirmation_message"`
}

func memoryForgetSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Result of attempting to remove a fact from memory").
		AddProperty("updated_memory", types.NewStringSchema().WithDescription("the updated memory blob after removing information")).
		AddProperty("fact_found", types.NewBooleanSchema().WithDescription("whether the specified fact was found and removed")).
		AddProperty("confirmation_message", types.NewStringSchema().WithDescription("brief confirmation message for the user in their language")).
		AddRequired("updated_memory", "fact_found", "confirmation_message")
}

// Generate resolves params.UserMention and performs the remember/forget
// operation, returning the confirmation message to send back, or the
// user-visible "couldn't identify that user" failure per the route's
// contract.
func (g *FactGenerator) Generate(ctx context.Context, guildID string, params domain.FactParams) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.fact")
	defer span.End()

	userID, ok := g.resolver.ResolveUser(ctx, guildID, params.UserMention)
	if !ok {
		return fmt.Sprintf("I couldn't identify the user '%s'. Please use a standard mention, user ID, or a recognizable nickname.", params.UserMention), nil
	}

	switch params.Operation {
	case "remember":
		return g.remember(ctx, guildID, userID, params.FactContent, params.LanguageName)
	case "forget":
		return g.forget(ctx, guildID, userID, params.FactContent, params.LanguageName)
	default:
		return fmt.Sprintf("Unknown operation: %s", params.Operation), nil
	}
}

func (g *FactGenerator) remember(ctx context.Context, guildID, userID, factContent, languageName string) (string, error) {
	current, err := g.store.GetUserFacts(ctx, guildID, userID)
	if err != nil {
		return "", fmt.Errorf("fact generator: read current facts: %w", err)
	}

	var prompt string
	if current == "" {
		prompt = fmt.Sprintf(rememberNewPromptTemplate, factContent, languageName)
	} else {
		prompt = fmt.Sprintf(rememberUpdatePromptTemplate, current, factContent, languageName)
	}

	result, err := llm.GenerateStructured[memoryUpdateResult](ctx, g.client, llm.Request{
		Message:      factContent,
		SystemPrompt: prompt,
		Temperature:  0,
	}, memoryUpdateSchema())
	if err != nil {
		return "", fmt.Errorf("fact generator: remember: %w", err)
	}

	if err := g.store.SaveUserFacts(ctx, guildID, userID, result.UpdatedMemory); err != nil {
		return "", fmt.Errorf("fact generator: save facts: %w", err)
	}
	return result.ConfirmationMessage, nil
}

func (g *FactGenerator) forget(ctx context.Context, guildID, userID, factContent, languageName string) (string, error) {
	current, err := g.store.GetUserFacts(ctx, guildID, userID)
	if err != nil {
		return "", fmt.Errorf("fact generator: read current facts: %w", err)
	}

	if current == "" {
		result, err := llm.GenerateStructured[memoryForgetResult](ctx, g.client, llm.Request{
			Message:      factContent,
			SystemPrompt: fmt.Sprintf(forgetNoMemoryPromptTemplate, factContent, languageName),
			Temperature:  0,
		}, memoryForgetSchema())
		if err != nil {
			return "", fmt.Errorf("fact generator: forget (no memory): %w", err)
		}
		return result.ConfirmationMessage, nil
	}

	result, err := llm.GenerateStructured[memoryForgetResult](ctx, g.client, llm.Request{
		Message:      factContent,
		SystemPrompt: fmt.Sprintf(forgetPromptTemplate, current, factContent, languageName),
		Temperature:  0,
	}, memoryForgetSchema())
	if err != nil {
		return "", fmt.Errorf("fact generator: forget: %w", err)
	}

	if result.FactFound {
		if err := g.store.SaveUserFacts(ctx, guildID, userID, result.UpdatedMemory); err != nil {
			return "", fmt.Errorf("fact generator: save facts: %w", err)
		}
	}
	return result.ConfirmationMessage, nil
}

const rememberNewPromptTemplate = `You need to create initial memory for a user with new information.

New information: %s

Create the memory entry maintaining third-person perspective. Please respond in %s.

For the confirmation_message field, provide a brief, friendly confirmation that includes the specific fact you're remembering, e.g. "I'll remember that their birthday is March 15th". Include the actual fact content in your confirmation message.`

const rememberUpdatePromptTemplate = `You need to update a user's memory by incorporating new information.

Current memory: %s
New information: %s

Merge the new information with the existing memory, resolving any conflicts intelligently and maintaining a natural narrative flow. Maintain third-person perspective. Please respond in %s.

For the confirmation_message field, provide a brief, friendly confirmation that includes the specific fact you're adding. Include the actual new fact content in your confirmation message.`

const forgetNoMemoryPromptTemplate = `The user asked you to forget information about someone, but you have no memory about that user.

Information they wanted to forget: %s

Please respond in %s. For the confirmation_message field, provide a brief message explaining that you don't have any memory about that user to forget.

Set fact_found to false and leave updated_memory empty since there's no memory to update.`

const forgetPromptTemplate = `You need to determine if specific information exists in a user's memory and remove it if found.

Current memory: %s
Information to remove: %s

If the information exists in the memory, remove it and return the updated memory with fact_found=true.
If the information is not found, set fact_found=false (the updated_memory field will be ignored).
Maintain third-person perspective. Please respond in %s.

For the confirmation_message field, include the specific fact content:
- If fact_found=true: "I've forgotten that [specific fact]"
- If fact_found=false: "I couldn't find that information in my memory"`
