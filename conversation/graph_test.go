package conversation

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGateway is an in-memory domain.ChatGateway backed by a single
// channel's linear message list, counting bulk FetchHistory calls so tests
// can assert the coalesced-cache efficiency property.
type fakeGateway struct {
	messages      []domain.Message // oldest first
	byID          map[string]domain.Message
	bulkCallCount int
}

func newFakeGateway(messages []domain.Message) *fakeGateway {
	g := &fakeGateway{messages: messages, byID: make(map[string]domain.Message)}
	for _, m := range messages {
		g.byID[m.ID] = m
	}
	return g
}

func (g *fakeGateway) SendMessage(ctx context.Context, channelID, content string) (domain.Message, error) {
	return domain.Message{}, nil
}
func (g *fakeGateway) ReplyTo(ctx context.Context, channelID, replyToID, content string) (domain.Message, error) {
	return domain.Message{}, nil
}
func (g *fakeGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (g *fakeGateway) FetchHistory(ctx context.Context, channelID string, before string, limit int) ([]domain.Message, error) {
	g.bulkCallCount++

	idx := len(g.messages)
	if before != "" {
		for i, m := range g.messages {
			if m.ID == before {
				idx = i
				break
			}
		}
	}
	// messages before idx, newest first.
	out := make([]domain.Message, 0, limit)
	for i := idx - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, g.messages[i])
	}
	return out, nil
}

func (g *fakeGateway) FetchMessage(ctx context.Context, channelID, messageID string) (domain.Message, error) {
	m, ok := g.byID[messageID]
	if !ok {
		return domain.Message{}, fmt.Errorf("not found: %s", messageID)
	}
	return m, nil
}

func (g *fakeGateway) ResolveDisplayName(ctx context.Context, guildID, userID string) (string, error) {
	return "User" + userID, nil
}

func linearChain(n int) []domain.Message {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]domain.Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = domain.Message{
			ID:        strconv.Itoa(i + 1),
			AuthorID:  "author",
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func TestBuildLinearChainTwoBulkCalls(t *testing.T) {
	msgs := linearChain(200)
	gw := newFakeGateway(msgs)
	builder := NewBuilder(gw, zap.NewNop())

	trigger := msgs[len(msgs)-1]
	result, err := builder.Build(context.Background(), trigger, "chan1", Bounds{
		MinLinear:            10,
		MaxTotal:             200,
		TimeThresholdMinutes: 1000,
	})
	require.NoError(t, err)
	require.Len(t, result, 200)
	require.Equal(t, 2, gw.bulkCallCount)
}

func TestGraphAcyclicAndDedup(t *testing.T) {
	msgs := linearChain(50)
	// introduce a reply edge to an earlier message, which AddNode should
	// dedup against the already-seeded linear chain.
	msgs[49].ReplyToID = msgs[0].ID
	gw := newFakeGateway(msgs)
	builder := NewBuilder(gw, zap.NewNop())

	result, err := builder.Build(context.Background(), msgs[49], "chan1", Bounds{
		MinLinear:            50,
		MaxTotal:             60,
		TimeThresholdMinutes: 1000,
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range result {
		require.False(t, seen[m.MessageID], "duplicate id %s", m.MessageID)
		seen[m.MessageID] = true
	}
}

func TestFrontierSealing(t *testing.T) {
	msgs := linearChain(5)
	// Force a large gap between message 2 and message 1.
	msgs[0].CreatedAt = msgs[1].CreatedAt.Add(-48 * time.Hour)
	gw := newFakeGateway(msgs)
	builder := NewBuilder(gw, zap.NewNop())

	result, err := builder.Build(context.Background(), msgs[4], "chan1", Bounds{
		MinLinear:            1,
		MaxTotal:             10,
		TimeThresholdMinutes: 30,
	})
	require.NoError(t, err)

	for _, m := range result {
		require.NotEqual(t, msgs[0].ID, m.MessageID, "message beyond time threshold must not appear")
	}
}
