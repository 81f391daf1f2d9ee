// Package bot implements the inbound event surface of the pipeline: the
// OnMessage / OnReactionAdd handlers a chat-gateway adapter delivers events
// into. OnMessage gates on the bot being addressed, ingests the message for
// later summarization, and routes it through the dispatcher; OnReactionAdd
// drives the emoji-triggered flows (clown/country jokes, wisdom, devil's
// advocate, joke detection and recording).
package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"

	"github.com/gruzilkin/urmom-bot-sub000/domain"

	"go.uber.org/zap"
)

const (
	clownEmoji      = "\U0001F921" // 🤡 -> ur-mom joke
	wisdomEmoji     = "\U0001F989" // 🦉 -> wisdom one-liner
	advocateEmoji   = "\U0001F608" // 😈 -> devil's advocate
	botMentionToken = "BOT"
)

// pipeline is the dispatcher surface the handler drives; satisfied by
// *generator.Dispatcher.
type pipeline interface {
	Dispatch(ctx context.Context, trigger domain.Message) (string, error)
	DispatchWisdom(ctx context.Context, trigger domain.Message) (string, error)
	DispatchDevilsAdvocate(ctx context.Context, trigger domain.Message) (string, error)
}

// jokeService is the joke-generator surface the reaction flows use;
// satisfied by *generator.JokeGenerator.
type jokeService interface {
	GenerateJoke(ctx context.Context, content, languageCode string) (string, error)
	GenerateCountryJoke(ctx context.Context, message, country string) (string, error)
	IsJoke(ctx context.Context, originalMessage, responseMessage, messageID string) bool
	SaveJoke(ctx context.Context, sourceMessageID, jokeMessageID int64, sourceContent, jokeContent string, reactionCount int) error
}

// jokeCounter bumps the stored reaction count for a recorded joke;
// satisfied by *store.Store.
type jokeCounter interface {
	IncrementJokeReactionCount(ctx context.Context, jokeMessageID int64) error
}

// ingestor persists a normalized message copy for later summarization;
// satisfied by *memory.Manager.
type ingestor interface {
	IngestMessage(ctx context.Context, guildID string, msg domain.Message) error
}

// descriptionCache reads precomputed article/attachment descriptions from
// the distributed cache; satisfied by *cache.Manager.
type descriptionCache interface {
	Get(ctx context.Context, key string) (string, error)
}

// languageDetector matches router.LanguageDetector's Detect method.
type languageDetector interface {
	Detect(ctx context.Context, text string) string
}

type reactionKey struct {
	messageID string
	emoji     string
}

// Handler receives gateway events and drives the pipeline. The
// processed-reaction set is in-memory only and lost on restart, matching the
// source behavior this implementation preserves.
type Handler struct {
	gateway   domain.ChatGateway
	pipeline  pipeline
	jokes     jokeService
	counter   jokeCounter
	ingest    ingestor
	cache     descriptionCache
	detector  languageDetector
	botUserID string
	logger    *zap.Logger

	mu         sync.Mutex
	processed  map[reactionKey]struct{}
	savedJokes map[string]struct{}
}

// NewHandler wires a Handler over the gateway and pipeline components.
// botUserID is the bot's own user id on the chat platform; an empty value
// means OnMessage never triggers (no mention can match).
func NewHandler(
	gateway domain.ChatGateway,
	p pipeline,
	jokes jokeService,
	counter jokeCounter,
	ingest ingestor,
	cacheReader descriptionCache,
	detector languageDetector,
	botUserID string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		gateway:    gateway,
		pipeline:   p,
		jokes:      jokes,
		counter:    counter,
		ingest:     ingest,
		cache:      cacheReader,
		detector:   detector,
		botUserID:  botUserID,
		logger:     logger.With(zap.String("component", "bot_handler")),
		processed:  make(map[reactionKey]struct{}),
		savedJokes: make(map[string]struct{}),
	}
}

// OnMessage handles one posted message: ingests it for the daily
// summarizer, then, when the bot is mentioned, routes it through the
// dispatcher and replies with the generated text. A pipeline failure that
// produced no reply is logged and swallowed -- the bot stays silent rather
// than surfacing an error to the channel.
func (h *Handler) OnMessage(ctx context.Context, msg domain.Message) error {
	if msg.AuthorID == h.botUserID {
		return nil
	}

	h.enrichEmbeddings(ctx, &msg)

	if err := h.ingest.IngestMessage(ctx, msg.GuildID, msg); err != nil {
		h.logger.Warn("message ingest failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	mention := "<@" + h.botUserID + ">"
	if h.botUserID == "" || !strings.Contains(msg.Content, mention) {
		return nil
	}

	trigger := msg
	trigger.Content = strings.TrimSpace(strings.ReplaceAll(msg.Content, mention, botMentionToken))

	reply, err := h.pipeline.Dispatch(ctx, trigger)
	if err != nil {
		h.logger.Error("dispatch failed", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if reply == "" {
		return nil
	}

	if _, err := h.gateway.ReplyTo(ctx, msg.ChannelID, msg.ID, reply); err != nil {
		h.logger.Error("reply send failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
	return nil
}

// OnReactionAdd handles one reaction-add event. Clown and country-flag
// reactions request a joke, owl requests wisdom, the devil face requests a
// devil's-advocate take; anything else runs joke detection on the
// reacted-to message.
func (h *Handler) OnReactionAdd(ctx context.Context, p domain.ReactionPayload) error {
	country := countryFromFlag(p.Emoji)

	switch {
	case p.Emoji == clownEmoji || country != "":
		if !h.markProcessed(p.MessageID, p.Emoji) {
			return nil
		}
		return h.handleJokeRequest(ctx, p, country)
	case p.Emoji == wisdomEmoji:
		if !h.markProcessed(p.MessageID, p.Emoji) {
			return nil
		}
		return h.handleReactionReply(ctx, p, h.pipeline.DispatchWisdom)
	case p.Emoji == advocateEmoji:
		if !h.markProcessed(p.MessageID, p.Emoji) {
			return nil
		}
		return h.handleReactionReply(ctx, p, h.pipeline.DispatchDevilsAdvocate)
	default:
		return h.handleJokeDetection(ctx, p)
	}
}

// markProcessed records (messageID, emoji) in the dedup set, reporting
// whether this event is the first occurrence.
func (h *Handler) markProcessed(messageID, emoji string) bool {
	key := reactionKey{messageID: messageID, emoji: emoji}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, seen := h.processed[key]; seen {
		return false
	}
	h.processed[key] = struct{}{}
	return true
}

func (h *Handler) handleJokeRequest(ctx context.Context, p domain.ReactionPayload, country string) error {
	msg, err := h.gateway.FetchMessage(ctx, p.ChannelID, p.MessageID)
	if err != nil {
		h.logger.Warn("joke request: fetch failed", zap.String("message_id", p.MessageID), zap.Error(err))
		return nil
	}

	var joke string
	if country != "" {
		joke, err = h.jokes.GenerateCountryJoke(ctx, msg.Content, country)
	} else {
		language := h.detector.Detect(ctx, msg.Content)
		joke, err = h.jokes.GenerateJoke(ctx, msg.Content, language)
	}
	if err != nil || joke == "" {
		h.logger.Warn("joke generation failed", zap.String("message_id", p.MessageID), zap.Error(err))
		return nil
	}

	if _, err := h.gateway.ReplyTo(ctx, p.ChannelID, p.MessageID, joke); err != nil {
		h.logger.Error("joke reply send failed", zap.String("message_id", p.MessageID), zap.Error(err))
	}
	return nil
}

func (h *Handler) handleReactionReply(
	ctx context.Context,
	p domain.ReactionPayload,
	dispatch func(ctx context.Context, trigger domain.Message) (string, error),
) error {
	msg, err := h.gateway.FetchMessage(ctx, p.ChannelID, p.MessageID)
	if err != nil {
		h.logger.Warn("reaction reply: fetch failed", zap.String("message_id", p.MessageID), zap.Error(err))
		return nil
	}
	if msg.GuildID == "" {
		msg.GuildID = p.GuildID
	}

	reply, err := dispatch(ctx, msg)
	if err != nil {
		h.logger.Error("reaction dispatch failed", zap.String("message_id", p.MessageID), zap.Error(err))
		return nil
	}
	if reply == "" {
		return nil
	}

	if _, err := h.gateway.ReplyTo(ctx, p.ChannelID, p.MessageID, reply); err != nil {
		h.logger.Error("reaction reply send failed", zap.String("message_id", p.MessageID), zap.Error(err))
	}
	return nil
}

// handleJokeDetection checks whether the reacted-to message is itself a joke
// reply and records it. The first detection saves the (source, joke) pair
// with a count of one; later reaction events on a known joke bump the count.
func (h *Handler) handleJokeDetection(ctx context.Context, p domain.ReactionPayload) error {
	msg, err := h.gateway.FetchMessage(ctx, p.ChannelID, p.MessageID)
	if err != nil {
		h.logger.Warn("joke detection: fetch failed", zap.String("message_id", p.MessageID), zap.Error(err))
		return nil
	}
	if msg.ReplyToID == "" {
		return nil
	}

	jokeID, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	_, known := h.savedJokes[msg.ID]
	h.mu.Unlock()
	if known {
		if err := h.counter.IncrementJokeReactionCount(ctx, jokeID); err != nil {
			h.logger.Warn("joke reaction bump failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
		return nil
	}

	source, err := h.gateway.FetchMessage(ctx, p.ChannelID, msg.ReplyToID)
	if err != nil {
		h.logger.Warn("joke detection: source fetch failed", zap.String("message_id", msg.ReplyToID), zap.Error(err))
		return nil
	}

	if !h.jokes.IsJoke(ctx, source.Content, msg.Content, msg.ID) {
		return nil
	}

	sourceID, err := strconv.ParseInt(source.ID, 10, 64)
	if err != nil {
		return nil
	}

	if err := h.jokes.SaveJoke(ctx, sourceID, jokeID, source.Content, msg.Content, 1); err != nil {
		h.logger.Warn("joke save failed", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	h.mu.Lock()
	h.savedJokes[msg.ID] = struct{}{}
	h.mu.Unlock()
	return nil
}

// enrichEmbeddings fills in blank embedding descriptions from the
// distributed cache the extraction collaborators populate (article:/
// attachment: keys). Cache misses and errors leave the description
// empty; the cache is never a correctness component.
func (h *Handler) enrichEmbeddings(ctx context.Context, msg *domain.Message) {
	for i := range msg.Embeddings {
		e := &msg.Embeddings[i]
		if e.Description != "" {
			continue
		}
		var key string
		switch {
		case e.Type == "article" && e.URL != "":
			sum := sha256.Sum256([]byte(e.URL))
			key = "article:" + hex.EncodeToString(sum[:])
		case e.Type == "image" && e.AttachmentID != "":
			key = "attachment:" + e.AttachmentID
		default:
			continue
		}
		if desc, err := h.cache.Get(ctx, key); err == nil && desc != "" {
			e.Description = desc
		}
	}
}
