package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gruzilkin/urmom-bot-sub000/domain"

	"go.uber.org/zap"
)

// renderEmbeddings appends each precomputed attachment/link description as
// an <embedding type="..."> tag, the same convention the daily-summary batch
// prompt tells the model to treat "as if you saw the images yourself".
func renderEmbeddings(embeddings []domain.Embedding) string {
	if len(embeddings) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range embeddings {
		fmt.Fprintf(&b, `<embedding type="%s">%s</embedding>`, e.Type, e.Description)
	}
	return b.String()
}

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// mentionCacheSize bounds the per-(guild,id) display-name LRU.
const mentionCacheSize = 4096

type mentionCacheKey struct {
	guildID string
	userID  string
}

// mentionResolver looks up a display name for a mention target, matching
// domain.ChatGateway.ResolveDisplayName's shape without importing domain
// directly so the formatter stays testable against a bare function.
type mentionResolver func(ctx context.Context, guildID, userID string) (string, error)

// Formatter renders a conversation window into the canonical XML block
// every generator prompts against, substituting mention tokens with
// resolved display names along the way.
type Formatter struct {
	resolve mentionResolver
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[mentionCacheKey]string
	order []mentionCacheKey
}

// NewFormatter builds a Formatter over a display-name resolver function.
func NewFormatter(resolve mentionResolver, logger *zap.Logger) *Formatter {
	return &Formatter{
		resolve: resolve,
		logger:  logger.With(zap.String("component", "conversation_formatter")),
		cache:   make(map[mentionCacheKey]string),
	}
}

// Render emits the canonical <conversation_history> block for a chronological
// conversation window.
func (f *Formatter) Render(ctx context.Context, guildID string, messages []ConversationMessage) string {
	var b strings.Builder
	b.WriteString("<conversation_history>\n")
	for _, m := range messages {
		b.WriteString("<message>\n")
		fmt.Fprintf(&b, "<id>%s</id>\n", m.MessageID)
		if m.ReplyToID != "" {
			fmt.Fprintf(&b, "<reply_to>%s</reply_to>\n", m.ReplyToID)
		}
		fmt.Fprintf(&b, "<timestamp>%s</timestamp>\n", m.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "<author>%s</author>\n", m.AuthorID)
		fmt.Fprintf(&b, "<content>%s%s</content>\n", f.substituteMentions(ctx, guildID, m.Content), renderEmbeddings(m.Embeddings))
		b.WriteString("</message>\n")
	}
	b.WriteString("</conversation_history>")
	return b.String()
}

// substituteMentions replaces every <@id>/<@!id> token in content with the
// resolved display name, falling back to "User(ID:N)" on resolution failure.
func (f *Formatter) substituteMentions(ctx context.Context, guildID, content string) string {
	return mentionPattern.ReplaceAllStringFunc(content, func(token string) string {
		matches := mentionPattern.FindStringSubmatch(token)
		userID := matches[1]
		return f.displayName(ctx, guildID, userID)
	})
}

func (f *Formatter) displayName(ctx context.Context, guildID, userID string) string {
	key := mentionCacheKey{guildID: guildID, userID: userID}

	f.mu.Lock()
	if name, ok := f.cache[key]; ok {
		for i, k := range f.order {
			if k == key {
				f.order = append(f.order[:i], f.order[i+1:]...)
				f.order = append(f.order, key)
				break
			}
		}
		f.mu.Unlock()
		return name
	}
	f.mu.Unlock()

	name, err := f.resolve(ctx, guildID, userID)
	if err != nil || name == "" {
		f.logger.Debug("display name resolution failed, using fallback",
			zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return fmt.Sprintf("User(ID:%s)", userID)
	}

	f.mu.Lock()
	f.put(key, name)
	f.mu.Unlock()
	return name
}

// put inserts a resolved name, evicting the least recently used entry once the bounded
// cache is full. Caller holds f.mu.
func (f *Formatter) put(key mentionCacheKey, name string) {
	if _, ok := f.cache[key]; !ok && len(f.cache) >= mentionCacheSize {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.cache, oldest)
	}
	if _, ok := f.cache[key]; !ok {
		f.order = append(f.order, key)
	}
	f.cache[key] = name
}
