// Package conversation implements the conversation graph builder and
// the canonical conversation formatter: together they turn a trigger
// message and its surrounding channel history into the rendered context
// every generator prompts against.
package conversation

import (
	"context"
	"sort"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("urmombot/conversation")

// ConversationMessage is one rendered graph node: the immutable fields the
// formatter needs to emit, independent of the chat gateway's own Message shape.
type ConversationMessage struct {
	MessageID    string
	AuthorID     string
	Content      string
	Timestamp    time.Time
	MentionedIDs []string
	ReplyToID    string
	Embeddings   []domain.Embedding
}

// MessageGraph is the deduplicated node set plus the two exploration
// frontiers the builder drains. Invariants: no duplicate ids, no cycles.
// Every newly added node joins the frontiers; exploring an id only removes
// it, never re-adds it.
type MessageGraph struct {
	nodes               map[string]domain.Message
	order               []string
	unexploredRefs      map[string]struct{}
	temporalFrontier    map[string]struct{}
}

// NewMessageGraph returns an empty graph.
func NewMessageGraph() *MessageGraph {
	return &MessageGraph{
		nodes:            make(map[string]domain.Message),
		unexploredRefs:   make(map[string]struct{}),
		temporalFrontier: make(map[string]struct{}),
	}
}

// AddNode inserts msg if its id is new, returning whether it was added.
// Inserting an existing id is a no-op, per the graph's dedup invariant.
func (g *MessageGraph) AddNode(msg domain.Message) bool {
	if _, ok := g.nodes[msg.ID]; ok {
		return false
	}
	g.nodes[msg.ID] = msg
	g.order = append(g.order, msg.ID)
	if msg.ReplyToID != "" {
		g.unexploredRefs[msg.ID] = struct{}{}
	}
	g.temporalFrontier[msg.ID] = struct{}{}
	return true
}

// MarkReferenceExplored removes id from the unexplored-references set.
func (g *MessageGraph) MarkReferenceExplored(id string) {
	delete(g.unexploredRefs, id)
}

// RemoveFromTemporalFrontier seals id out of further temporal exploration.
func (g *MessageGraph) RemoveFromTemporalFrontier(id string) {
	delete(g.temporalFrontier, id)
}

// UnexploredReferences returns the current set of nodes with an
// unfollowed reply_to_id.
func (g *MessageGraph) UnexploredReferences() []domain.Message {
	out := make([]domain.Message, 0, len(g.unexploredRefs))
	for id := range g.unexploredRefs {
		out = append(out, g.nodes[id])
	}
	return out
}

// TemporalFrontier returns the current frontier, newest-first.
func (g *MessageGraph) TemporalFrontier() []domain.Message {
	out := make([]domain.Message, 0, len(g.temporalFrontier))
	for id := range g.temporalFrontier {
		out = append(out, g.nodes[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of nodes currently in the graph.
func (g *MessageGraph) Len() int {
	return len(g.nodes)
}

// ToChronological renders every node in ascending created-at order, id
// ascending as the tiebreak.
func (g *MessageGraph) ToChronological() []ConversationMessage {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.nodes[ids[i]], g.nodes[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	out := make([]ConversationMessage, 0, len(ids))
	for _, id := range ids {
		m := g.nodes[id]
		out = append(out, ConversationMessage{
			MessageID:    m.ID,
			AuthorID:     m.AuthorID,
			Content:      m.Content,
			Timestamp:    m.CreatedAt,
			MentionedIDs: m.Mentions,
			ReplyToID:    m.ReplyToID,
			Embeddings:   m.Embeddings,
		})
	}
	return out
}

// Bounds configures one graph assembly: the minimum linear history to seed
// regardless of time gaps, the overall node cap, and the TOK step's time
// gate in minutes.
type Bounds struct {
	MinLinear           int
	MaxTotal            int
	TimeThresholdMinutes int
}

// Builder assembles a MessageGraph by alternating reference-chasing (TIK)
// and temporal-neighbor (TOK) exploration over a gateway, coalescing fetch
// traffic through a cachedHistoryFetcher.
type Builder struct {
	gateway domain.ChatGateway
	logger  *zap.Logger
}

// NewBuilder constructs a graph builder over a chat gateway.
func NewBuilder(gateway domain.ChatGateway, logger *zap.Logger) *Builder {
	return &Builder{gateway: gateway, logger: logger.With(zap.String("component", "conversation_builder"))}
}

// Build alternates reference exploration and temporal expansion over the
// trigger's surroundings and returns the
// resulting conversation in chronological order. A fresh cachedHistoryFetcher
// is used per call, scoped to this single assembly.
func (b *Builder) Build(ctx context.Context, trigger domain.Message, channelID string, bounds Bounds) ([]ConversationMessage, error) {
	ctx, span := tracer.Start(ctx, "conversation.build")
	defer span.End()

	fetcher := newCachedHistoryFetcher(b.gateway, channelID, b.logger)
	graph := NewMessageGraph()

	linear, err := b.getLinearHistory(ctx, fetcher, trigger, bounds.MinLinear)
	if err != nil {
		return nil, err
	}
	for _, m := range linear {
		graph.AddNode(m)
	}

	for graph.Len() < bounds.MaxTotal {
		referenceAdded := b.exploreReferences(ctx, fetcher, graph)
		if graph.Len() >= bounds.MaxTotal {
			break
		}
		temporalAdded := b.exploreTemporalNeighbors(ctx, fetcher, graph, bounds.TimeThresholdMinutes)
		if !referenceAdded && !temporalAdded {
			break
		}
	}

	return graph.ToChronological(), nil
}

func (b *Builder) getLinearHistory(ctx context.Context, fetcher *cachedHistoryFetcher, trigger domain.Message, minLinear int) ([]domain.Message, error) {
	if minLinear < 1 {
		minLinear = 1
	}
	prev, err := fetcher.bulkHistory(ctx, trigger.ID)
	if err != nil {
		b.logger.Warn("linear history seed fetch failed", zap.Error(err))
		return []domain.Message{trigger}, nil
	}
	out := make([]domain.Message, 0, minLinear)
	out = append(out, trigger)
	for i := 0; i < len(prev) && i < minLinear-1; i++ {
		out = append(out, prev[i])
	}
	return out, nil
}

// exploreReferences is the TIK step: follow every unexplored reply_to_id
// once, then unconditionally clear that node's unexplored-reference mark.
func (b *Builder) exploreReferences(ctx context.Context, fetcher *cachedHistoryFetcher, graph *MessageGraph) bool {
	toExplore := graph.UnexploredReferences()
	if len(toExplore) == 0 {
		return false
	}

	addedAny := false
	for _, msg := range toExplore {
		if msg.ReplyToID != "" {
			referenced, err := fetcher.messageByID(ctx, msg.ReplyToID)
			if err != nil {
				b.logger.Warn("reference fetch failed", zap.String("message_id", msg.ReplyToID), zap.Error(err))
			} else if referenced != nil && graph.AddNode(*referenced) {
				addedAny = true
			}
		}
		graph.MarkReferenceExplored(msg.ID)
	}
	return addedAny
}

// exploreTemporalNeighbors is the TOK step: for every frontier node, fetch
// its immediate predecessor; admit it if within the time threshold; seal
// the node out of the frontier regardless of outcome.
func (b *Builder) exploreTemporalNeighbors(ctx context.Context, fetcher *cachedHistoryFetcher, graph *MessageGraph, thresholdMinutes int) bool {
	frontier := graph.TemporalFrontier()
	if len(frontier) == 0 {
		return false
	}

	addedAny := false
	threshold := time.Duration(thresholdMinutes) * time.Minute
	for _, current := range frontier {
		prev, err := fetcher.previousMessage(ctx, current.ID)
		if err != nil {
			b.logger.Warn("temporal neighbor fetch failed", zap.String("message_id", current.ID), zap.Error(err))
		} else if prev != nil {
			if current.CreatedAt.Sub(prev.CreatedAt) <= threshold {
				if graph.AddNode(*prev) {
					addedAny = true
				}
			}
		}
		graph.RemoveFromTemporalFrontier(current.ID)
	}
	return addedAny
}
