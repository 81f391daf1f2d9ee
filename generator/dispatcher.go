package generator

import (
	"context"
	"fmt"

	"github.com/gruzilkin/urmom-bot-sub000/conversation"
	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/ctxkeys"
	"github.com/gruzilkin/urmom-bot-sub000/memory"
	"github.com/gruzilkin/urmom-bot-sub000/router"

	"go.uber.org/zap"
)

// DefaultBounds is the conversation window a routed reply assembles its
// graph within: a ten-message linear seed, a thirty-node cap, and a
// thirty-minute temporal gate.
var DefaultBounds = conversation.Bounds{MinLinear: 10, MaxTotal: 30, TimeThresholdMinutes: 30}

// Dispatcher wires the router to the conversation builder, memory manager,
// formatter, the three routed generators, and response post-processing into
// the end-to-end reply pipeline: one inbound trigger message in, one reply
// (or nothing) out.
type Dispatcher struct {
	router    *router.Router
	builder   *conversation.Builder
	formatter *conversation.Formatter
	memory    *memory.Manager

	famous  *FamousGenerator
	general *GeneralGenerator
	fact    *FactGenerator

	// Reaction-triggered generators, invoked by the gateway handler rather
	// than selected by the router.
	wisdom   *WisdomGenerator
	advocate *DevilsAdvocateGenerator
	detector *router.LanguageDetector

	bounds conversation.Bounds
	logger *zap.Logger
}

// NewDispatcher wires a Dispatcher over the pipeline's component instances.
func NewDispatcher(
	r *router.Router,
	builder *conversation.Builder,
	formatter *conversation.Formatter,
	memoryMgr *memory.Manager,
	famous *FamousGenerator,
	general *GeneralGenerator,
	fact *FactGenerator,
	wisdom *WisdomGenerator,
	advocate *DevilsAdvocateGenerator,
	detector *router.LanguageDetector,
	bounds conversation.Bounds,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		router:    r,
		builder:   builder,
		formatter: formatter,
		memory:    memoryMgr,
		famous:    famous,
		general:   general,
		fact:      fact,
		wisdom:    wisdom,
		advocate:  advocate,
		detector:  detector,
		bounds:    bounds,
		logger:    logger.With(zap.String("component", "generator_dispatcher")),
	}
}

// Dispatch runs the full pipeline for a single trigger message: route
// selection, conversation assembly, memory lookup, generation, and
// post-processing. Returns ("", nil) for NONE/NOTSURE-with-no-fallback and
// any route whose generator declines to answer -- the caller sends nothing
// in that case, rather than treating it as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger domain.Message) (string, error) {
	ctx = ctxkeys.WithTraceID(ctx, trigger.ID)
	ctx = ctxkeys.WithGuildID(ctx, trigger.GuildID)
	ctx = ctxkeys.WithUserID(ctx, trigger.AuthorID)

	result, params, err := d.router.Select(ctx, trigger.Content)
	if err != nil {
		return "", fmt.Errorf("dispatch: route selection: %w", err)
	}

	switch p := params.(type) {
	case domain.FamousParams:
		return d.dispatchFamous(ctx, trigger, p)
	case domain.GeneralParams:
		return d.dispatchGeneral(ctx, trigger, p)
	case domain.FactParams:
		return d.dispatchFact(ctx, trigger, p)
	default:
		d.logger.Debug("no reply for route", zap.String("route", string(result.Route)))
		return "", nil
	}
}

func (d *Dispatcher) dispatchFamous(ctx context.Context, trigger domain.Message, params domain.FamousParams) (string, error) {
	conversationBlock, err := d.renderConversation(ctx, trigger)
	if err != nil {
		return "", err
	}
	return d.famous.Generate(ctx, params.FamousPerson, params.LanguageName, trigger.Content, conversationBlock)
}

func (d *Dispatcher) dispatchGeneral(ctx context.Context, trigger domain.Message, params domain.GeneralParams) (string, error) {
	messages, err := d.builder.Build(ctx, trigger, trigger.ChannelID, d.bounds)
	if err != nil {
		return "", fmt.Errorf("dispatch: build conversation: %w", err)
	}

	memoriesBlock, err := d.memory.BuildMemoryPrompt(ctx, trigger.GuildID, uniqueParticipants(messages))
	if err != nil {
		return "", fmt.Errorf("dispatch: build memory prompt: %w", err)
	}

	conversationBlock := d.formatter.Render(ctx, trigger.GuildID, messages)
	return d.general.Generate(ctx, params, memoriesBlock, conversationBlock)
}

func (d *Dispatcher) dispatchFact(ctx context.Context, trigger domain.Message, params domain.FactParams) (string, error) {
	return d.fact.Generate(ctx, trigger.GuildID, params)
}

// DispatchWisdom runs the reaction-triggered wisdom pipeline for the
// reacted-to message: conversation window, participant memories, then the
// wisdom generator in the message's detected language.
func (d *Dispatcher) DispatchWisdom(ctx context.Context, trigger domain.Message) (string, error) {
	return d.dispatchReactionGenerator(ctx, trigger, d.wisdom.Generate)
}

// DispatchDevilsAdvocate runs the reaction-triggered devil's-advocate
// pipeline, same shape as DispatchWisdom.
func (d *Dispatcher) DispatchDevilsAdvocate(ctx context.Context, trigger domain.Message) (string, error) {
	return d.dispatchReactionGenerator(ctx, trigger, d.advocate.Generate)
}

func (d *Dispatcher) dispatchReactionGenerator(
	ctx context.Context,
	trigger domain.Message,
	generate func(ctx context.Context, triggerContent, languageName, memoriesBlock, conversationBlock string) (string, error),
) (string, error) {
	ctx = ctxkeys.WithTraceID(ctx, trigger.ID)
	ctx = ctxkeys.WithGuildID(ctx, trigger.GuildID)
	ctx = ctxkeys.WithUserID(ctx, trigger.AuthorID)

	messages, err := d.builder.Build(ctx, trigger, trigger.ChannelID, d.bounds)
	if err != nil {
		return "", fmt.Errorf("dispatch: build conversation: %w", err)
	}

	memoriesBlock, err := d.memory.BuildMemoryPrompt(ctx, trigger.GuildID, uniqueParticipants(messages))
	if err != nil {
		return "", fmt.Errorf("dispatch: build memory prompt: %w", err)
	}

	conversationBlock := d.formatter.Render(ctx, trigger.GuildID, messages)
	languageName := d.detector.Name(ctx, d.detector.Detect(ctx, trigger.Content))
	return generate(ctx, trigger.Content, languageName, memoriesBlock, conversationBlock)
}

// renderConversation assembles and renders the conversation window for a
// routed trigger without memory context -- the FAMOUS route prompts on the
// conversation alone, with no per-participant memory injection.
func (d *Dispatcher) renderConversation(ctx context.Context, trigger domain.Message) (string, error) {
	messages, err := d.builder.Build(ctx, trigger, trigger.ChannelID, d.bounds)
	if err != nil {
		return "", fmt.Errorf("dispatch: build conversation: %w", err)
	}
	return d.formatter.Render(ctx, trigger.GuildID, messages), nil
}

// uniqueParticipants extracts every distinct author and mentioned user id
// from messages (authors + mentions, system user id "0" excluded since it
// marks article/attachment embeddings rather than a real participant).
func uniqueParticipants(messages []conversation.ConversationMessage) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" || id == "0" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, m := range messages {
		add(m.AuthorID)
		for _, mention := range m.MentionedIDs {
			add(mention)
		}
	}
	return ids
}
