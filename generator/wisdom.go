package generator

import (
	"context"
	"fmt"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"go.uber.org/zap"
)

const wisdomTemperature = 0.8

// answerReasonResult is the schema-typed answer shared by WisdomGenerator
// and DevilsAdvocateGenerator: the delivered one-liner plus a reason logged
// but never shown to the user.
type answerReasonResult struct {
	Answer string `json:"answer"`
	Reason string `json:"reason"`
}

func answerReasonSchema(answerDescription string) *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("answer", types.NewStringSchema().WithDescription(answerDescription)).
		AddProperty("reason", types.NewStringSchema().WithDescription("brief internal reasoning for the chosen answer, not shown to the user")).
		AddRequired("answer", "reason")
}

// WisdomGenerator delivers a street-smart one-liner distilled from the
// conversation around a reacted-to message. Invoked directly by the
// chat-gateway layer (e.g. on a specific reaction emoji), not dispatched by
// the router.
type WisdomGenerator struct {
	client      llm.GenerativeClient // shuffled composite giving both configured backends equal chance
	postprocess *postprocess.Processor
	logger      *zap.Logger
}

// NewWisdomGenerator builds a WisdomGenerator over an already-composed
// generation client.
func NewWisdomGenerator(client llm.GenerativeClient, proc *postprocess.Processor, logger *zap.Logger) *WisdomGenerator {
	return &WisdomGenerator{
		client:      client,
		postprocess: proc,
		logger:      logger.With(zap.String("component", "generator_wisdom")),
	}
}

// Generate delivers the wisdom one-liner for triggerContent within
// conversationBlock/memoriesBlock, or "" if the backend returns nothing.
func (g *WisdomGenerator) Generate(ctx context.Context, triggerContent, languageName, memoriesBlock, conversationBlock string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.wisdom")
	defer span.End()

	if memoriesBlock == "" {
		memoriesBlock = "No memories about users in this conversation."
	}
	prompt := fmt.Sprintf(wisdomPromptTemplate, languageName, memoriesBlock, conversationBlock, triggerContent)

	result, err := llm.GenerateStructured[answerReasonResult](ctx, g.client, llm.Request{
		Message:      triggerContent,
		SystemPrompt: prompt,
		Temperature:  wisdomTemperature,
	}, answerReasonSchema("street-smart, humorous wisdom one-liner to deliver to the user"))
	if err != nil {
		g.logger.Warn("wisdom generation failed", zap.Error(err))
		return "", nil
	}

	g.logger.Info("generated wisdom", zap.String("reason", result.Reason))
	return g.postprocess.Process(ctx, result.Answer), nil
}

const wisdomPromptTemplate = `<system_instructions>
You are a street-smart observer who distills conversations into punchy, humorous wisdom.

Your task is to analyze the conversation and deliver a one-liner that:
1. Captures what's actually happening in the conversation
2. Delivers it as modern, quotable wisdom with a humorous twist
3. Sounds like something a clever friend would say that makes everyone go "damn, that's true"
4. Is street-smart, slightly cynical, but genuinely insightful

Style requirements:
- ONE-LINER format -- short, punchy, quotable (max 1-2 sentences)
- The humor comes from clever observations and cynical truths, not from being verbose
- The wisdom should be BOTH humorous AND genuinely insightful

Response format:
- Deliver ONLY the wisdom itself
- No preambles, no explanations, no meta-commentary

Language:
- Respond in %s
- Use whatever language style best delivers the wisdom -- slang, formal, archaic, whatever fits

Personalization:
- You have memories about some users in this conversation -- use them to make the wisdom more personal and relevant
</system_instructions>

%s

%s

<trigger_message>
%s
</trigger_message>`
