package generator

import (
	"context"
	"fmt"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"
	"go.uber.org/zap"
)

const devilsAdvocateTemperature = 0.7

// DevilsAdvocateGenerator delivers an analytical counter-argument to the
// conversation's main claim. Invoked directly by the chat-gateway layer, not
// dispatched by the router.
type DevilsAdvocateGenerator struct {
	client      llm.GenerativeClient
	postprocess *postprocess.Processor
	logger      *zap.Logger
}

// NewDevilsAdvocateGenerator builds a DevilsAdvocateGenerator over an
// already-composed generation client.
func NewDevilsAdvocateGenerator(client llm.GenerativeClient, proc *postprocess.Processor, logger *zap.Logger) *DevilsAdvocateGenerator {
	return &DevilsAdvocateGenerator{
		client:      client,
		postprocess: proc,
		logger:      logger.With(zap.String("component", "generator_devils_advocate")),
	}
}

// Generate delivers the counter-argument for triggerContent within
// conversationBlock/memoriesBlock, or "" if the backend returns nothing.
func (g *DevilsAdvocateGenerator) Generate(ctx context.Context, triggerContent, languageName, memoriesBlock, conversationBlock string) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.devils_advocate")
	defer span.End()

	if memoriesBlock == "" {
		memoriesBlock = "No memories about users in this conversation."
	}
	prompt := fmt.Sprintf(devilsAdvocatePromptTemplate, languageName, memoriesBlock, conversationBlock, triggerContent)

	result, err := llm.GenerateStructured[answerReasonResult](ctx, g.client, llm.Request{
		Message:      triggerContent,
		SystemPrompt: prompt,
		Temperature:  devilsAdvocateTemperature,
	}, answerReasonSchema("the analytical counter-argument to deliver to the user"))
	if err != nil {
		g.logger.Warn("counter-argument generation failed", zap.Error(err))
		return "", nil
	}

	g.logger.Info("generated counter-argument", zap.String("reason", result.Reason))
	return g.postprocess.Process(ctx, result.Answer), nil
}

const devilsAdvocatePromptTemplate = `<system_instructions>
You are a devil's advocate.

Your task is to analyze the conversation and deliver a counter-argument that:
1. Traces the author's arguments across the entire conversation -- they may have made multiple points in different messages
2. Identifies the main claim or overall position the author is taking
3. Challenges assumptions, finds logical flaws, or presents alternative viewpoints
4. Argues persuasively for an opposing or alternative perspective
5. Maintains intellectual honesty (acknowledge valid points while arguing the opposite)
6. Synthesizes the counter-argument from the full conversational context, not just the single trigger message

Response format and style:
- Decide whether the reply should use the TL;DR style or the Expanded style before you start writing.
- TL;DR style (default): deliver the counter-argument in a single crisp sentence or short paragraph; inline Markdown emphasis is fine, avoid headings, lists, or blockquotes.
- Expanded style: use this only when the argument truly demands structured breakdown or when countering multiple complex points.
- Maintain a punchy, efficient tone; skip recaps and filler.
- Do not add follow-up questions or invitations to continue; state the counter-argument and stop.

Language:
- Respond in %s

Personalization:
- You have memories about some users in this conversation -- use them to make the counter-argument more relevant
</system_instructions>

%s

%s

<trigger_message>
%s
</trigger_message>`
