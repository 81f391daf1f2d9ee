package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	messages map[string]domain.Message
	replies  []string
}

func (g *fakeGateway) SendMessage(ctx context.Context, channelID, content string) (domain.Message, error) {
	return domain.Message{}, nil
}

func (g *fakeGateway) ReplyTo(ctx context.Context, channelID, replyToID, content string) (domain.Message, error) {
	g.replies = append(g.replies, content)
	return domain.Message{}, nil
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (g *fakeGateway) FetchHistory(ctx context.Context, channelID, before string, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (g *fakeGateway) FetchMessage(ctx context.Context, channelID, messageID string) (domain.Message, error) {
	msg, ok := g.messages[messageID]
	if !ok {
		return domain.Message{}, fmt.Errorf("message %s not found", messageID)
	}
	return msg, nil
}

func (g *fakeGateway) ResolveDisplayName(ctx context.Context, guildID, userID string) (string, error) {
	return "user-" + userID, nil
}

type fakePipeline struct {
	dispatched []domain.Message
	reply      string
	err        error
}

func (p *fakePipeline) Dispatch(ctx context.Context, trigger domain.Message) (string, error) {
	p.dispatched = append(p.dispatched, trigger)
	return p.reply, p.err
}

func (p *fakePipeline) DispatchWisdom(ctx context.Context, trigger domain.Message) (string, error) {
	p.dispatched = append(p.dispatched, trigger)
	return p.reply, p.err
}

func (p *fakePipeline) DispatchDevilsAdvocate(ctx context.Context, trigger domain.Message) (string, error) {
	p.dispatched = append(p.dispatched, trigger)
	return p.reply, p.err
}

type fakeJokes struct {
	jokeCalls    int
	countryCalls []string
	isJoke       bool
	saved        []int64
}

func (j *fakeJokes) GenerateJoke(ctx context.Context, content, languageCode string) (string, error) {
	j.jokeCalls++
	return "ur mom " + content, nil
}

func (j *fakeJokes) GenerateCountryJoke(ctx context.Context, message, country string) (string, error) {
	j.countryCalls = append(j.countryCalls, country)
	return "In " + country + "...", nil
}

func (j *fakeJokes) IsJoke(ctx context.Context, originalMessage, responseMessage, messageID string) bool {
	return j.isJoke
}

func (j *fakeJokes) SaveJoke(ctx context.Context, sourceMessageID, jokeMessageID int64, sourceContent, jokeContent string, reactionCount int) error {
	j.saved = append(j.saved, jokeMessageID)
	return nil
}

type fakeCounter struct {
	bumped []int64
}

func (c *fakeCounter) IncrementJokeReactionCount(ctx context.Context, jokeMessageID int64) error {
	c.bumped = append(c.bumped, jokeMessageID)
	return nil
}

type fakeIngestor struct {
	ingested []string
}

func (i *fakeIngestor) IngestMessage(ctx context.Context, guildID string, msg domain.Message) error {
	i.ingested = append(i.ingested, msg.ID)
	return nil
}

type fakeCache struct {
	entries map[string]string
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.entries[key]
	if !ok {
		return "", fmt.Errorf("cache miss: %s", key)
	}
	return v, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(ctx context.Context, text string) string { return "en" }

type handlerFixture struct {
	handler  *Handler
	gateway  *fakeGateway
	pipeline *fakePipeline
	jokes    *fakeJokes
	counter  *fakeCounter
	ingestor *fakeIngestor
	cache    *fakeCache
}

func newFixture(botUserID string) *handlerFixture {
	f := &handlerFixture{
		gateway:  &fakeGateway{messages: make(map[string]domain.Message)},
		pipeline: &fakePipeline{reply: "an answer"},
		jokes:    &fakeJokes{},
		counter:  &fakeCounter{},
		ingestor: &fakeIngestor{},
		cache:    &fakeCache{entries: make(map[string]string)},
	}
	f.handler = NewHandler(f.gateway, f.pipeline, f.jokes, f.counter, f.ingestor, f.cache, fakeDetector{}, botUserID, zap.NewNop())
	return f
}

func testMessage(id, author, content string) domain.Message {
	return domain.Message{
		ID:        id,
		GuildID:   "guild-1",
		ChannelID: "channel-1",
		AuthorID:  author,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func TestOnMessageWithoutMentionIngestsButDoesNotDispatch(t *testing.T) {
	f := newFixture("42")

	err := f.handler.OnMessage(context.Background(), testMessage("1", "7", "hello everyone"))

	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, f.ingestor.ingested)
	assert.Empty(t, f.pipeline.dispatched)
	assert.Empty(t, f.gateway.replies)
}

func TestOnMessageWithMentionDispatchesAndReplies(t *testing.T) {
	f := newFixture("42")

	err := f.handler.OnMessage(context.Background(), testMessage("1", "7", "<@42> what is the answer"))

	require.NoError(t, err)
	require.Len(t, f.pipeline.dispatched, 1)
	assert.Equal(t, "BOT what is the answer", f.pipeline.dispatched[0].Content)
	assert.Equal(t, []string{"an answer"}, f.gateway.replies)
}

func TestOnMessageFromBotItselfIsIgnored(t *testing.T) {
	f := newFixture("42")

	err := f.handler.OnMessage(context.Background(), testMessage("1", "42", "<@42> talking to myself"))

	require.NoError(t, err)
	assert.Empty(t, f.ingestor.ingested)
	assert.Empty(t, f.pipeline.dispatched)
}

func TestOnMessageDispatchErrorStaysSilent(t *testing.T) {
	f := newFixture("42")
	f.pipeline.err = fmt.Errorf("provider down")
	f.pipeline.reply = ""

	err := f.handler.OnMessage(context.Background(), testMessage("1", "7", "<@42> hi"))

	require.NoError(t, err)
	assert.Empty(t, f.gateway.replies)
}

func TestClownReactionGeneratesJokeOnce(t *testing.T) {
	f := newFixture("42")
	f.gateway.messages["10"] = testMessage("10", "7", "I fixed the build")

	payload := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "10", Emoji: "\U0001F921"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), payload))
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), payload))

	assert.Equal(t, 1, f.jokes.jokeCalls)
	assert.Len(t, f.gateway.replies, 1)
}

func TestFlagReactionGeneratesCountryJoke(t *testing.T) {
	f := newFixture("42")
	f.gateway.messages["10"] = testMessage("10", "7", "dinner was great")

	payload := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "10", Emoji: "\U0001F1EB\U0001F1F7"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), payload))

	assert.Equal(t, []string{"France"}, f.jokes.countryCalls)
	assert.Equal(t, 0, f.jokes.jokeCalls)
}

func TestWisdomReactionDispatchesReactedMessage(t *testing.T) {
	f := newFixture("42")
	f.gateway.messages["10"] = testMessage("10", "7", "should I rewrite it in rust")

	payload := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "10", Emoji: "\U0001F989"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), payload))

	require.Len(t, f.pipeline.dispatched, 1)
	assert.Equal(t, "should I rewrite it in rust", f.pipeline.dispatched[0].Content)
	assert.Equal(t, []string{"an answer"}, f.gateway.replies)
}

func TestJokeDetectionSavesThenBumps(t *testing.T) {
	f := newFixture("42")
	f.jokes.isJoke = true
	source := testMessage("100", "7", "I lost my keys")
	joke := testMessage("101", "8", "ur mom lost her keys")
	joke.ReplyToID = "100"
	f.gateway.messages["100"] = source
	f.gateway.messages["101"] = joke

	first := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "101", Emoji: "\U0001F602"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), first))
	assert.Equal(t, []int64{101}, f.jokes.saved)
	assert.Empty(t, f.counter.bumped)

	second := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "101", Emoji: "\U0001F44D"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), second))
	assert.Equal(t, []int64{101}, f.jokes.saved)
	assert.Equal(t, []int64{101}, f.counter.bumped)
}

func TestJokeDetectionIgnoresNonReplies(t *testing.T) {
	f := newFixture("42")
	f.jokes.isJoke = true
	f.gateway.messages["100"] = testMessage("100", "7", "just a message")

	payload := domain.ReactionPayload{GuildID: "guild-1", ChannelID: "channel-1", MessageID: "100", Emoji: "\U0001F602"}
	require.NoError(t, f.handler.OnReactionAdd(context.Background(), payload))

	assert.Empty(t, f.jokes.saved)
}

func TestEnrichEmbeddingsFillsDescriptionsFromCache(t *testing.T) {
	f := newFixture("42")
	url := "https://example.com/article"
	sum := sha256.Sum256([]byte(url))
	f.cache.entries["article:"+hex.EncodeToString(sum[:])] = "an article about gophers"
	f.cache.entries["attachment:abc"] = "a photo of a gopher"

	msg := testMessage("1", "7", "look at this")
	msg.Embeddings = []domain.Embedding{
		{Type: "article", URL: url},
		{Type: "image", AttachmentID: "abc"},
		{Type: "image", AttachmentID: "missing"},
		{Type: "article", URL: "https://example.com/other", Description: "already described"},
	}

	f.handler.enrichEmbeddings(context.Background(), &msg)

	assert.Equal(t, "an article about gophers", msg.Embeddings[0].Description)
	assert.Equal(t, "a photo of a gopher", msg.Embeddings[1].Description)
	assert.Empty(t, msg.Embeddings[2].Description)
	assert.Equal(t, "already described", msg.Embeddings[3].Description)
}

func TestCountryFromFlag(t *testing.T) {
	tests := []struct {
		emoji    string
		expected string
	}{
		{"\U0001F1EB\U0001F1F7", "France"},
		{"\U0001F1EF\U0001F1F5", "Japan"},
		{"\U0001F921", ""},
		{"x", ""},
		{"", ""},
		{"\U0001F1EB", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, countryFromFlag(tt.emoji), "emoji %q", tt.emoji)
	}
}
