package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatterSubstitutesMentions(t *testing.T) {
	calls := 0
	resolve := func(ctx context.Context, guildID, userID string) (string, error) {
		calls++
		if userID == "42" {
			return "Alice", nil
		}
		return "", errors.New("not found")
	}
	f := NewFormatter(resolve, zap.NewNop())

	msgs := []ConversationMessage{
		{MessageID: "1", AuthorID: "42", Content: "hello <@42> and <@!99>", Timestamp: time.Now()},
	}
	out := f.Render(context.Background(), "guild1", msgs)

	require.Contains(t, out, "hello Alice and User(ID:99)")
	require.Contains(t, out, "<id>1</id>")
	require.Contains(t, out, "<author>42</author>")
}

func TestFormatterCachesResolution(t *testing.T) {
	calls := 0
	resolve := func(ctx context.Context, guildID, userID string) (string, error) {
		calls++
		return "Bob", nil
	}
	f := NewFormatter(resolve, zap.NewNop())

	msgs := []ConversationMessage{
		{MessageID: "1", Content: "hi <@7>", Timestamp: time.Now()},
		{MessageID: "2", Content: "hi again <@7>", Timestamp: time.Now()},
	}
	out := f.Render(context.Background(), "guild1", msgs)

	require.Equal(t, 1, calls)
	require.Equal(t, 2, strings.Count(out, "Bob"))
}

func TestFormatterOmitsReplyToWhenAbsent(t *testing.T) {
	f := NewFormatter(func(ctx context.Context, guildID, userID string) (string, error) {
		return "", nil
	}, zap.NewNop())

	msgs := []ConversationMessage{{MessageID: "1", Content: "no reply", Timestamp: time.Now()}}
	out := f.Render(context.Background(), "guild1", msgs)
	require.NotContains(t, out, "<reply_to>")

	msgs[0].ReplyToID = "99"
	out = f.Render(context.Background(), "guild1", msgs)
	require.Contains(t, out, "<reply_to>99</reply_to>")
}
