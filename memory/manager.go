// Package memory implements the memory manager: per-user long-term
// facts composed with a rolling seven-day window of daily summaries, under
// a staleness-driven rebuild for today's entry and a content-addressed
// merge cache for the synthesized narrative.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gruzilkin/urmom-bot-sub000/conversation"
	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/cache"
	"github.com/gruzilkin/urmom-bot-sub000/internal/ctxkeys"
	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"
	"github.com/gruzilkin/urmom-bot-sub000/internal/store"
	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("urmombot/memory")

const (
	windowDays        = 7
	todayFreshWindow  = time.Hour
	rebuildLockTTL    = 10 * time.Minute
	dailySummaryTTL   = 24 * time.Hour
	mergedContextTTL  = 24 * time.Hour
	mergeCacheSize    = 500
	aliasCacheSize    = 500
	dateLayout        = "2006-01-02"
)

// displayNameFunc resolves a user's display name for prompt construction,
// matching domain.ChatGateway.ResolveDisplayName's shape without importing
// domain's interface directly.
type displayNameFunc func(ctx context.Context, guildID, userID string) (string, error)

// dailySummaryEntry is the distributed-cache JSON payload for today's
// summary (daily_summary:{guild_id}:{yyyy-mm-dd}).
type dailySummaryEntry struct {
	Summaries map[string]string `json:"summaries"`
	CreatedAt time.Time         `json:"created_at"`
}

// Manager answers GetMemories and owns the staleness-driven today rebuild,
// the historical-summary write-once path, and the merged-context cache.
type Manager struct {
	cache        *cache.Manager
	store        *store.Store
	dailyClient  llm.GenerativeClient // batch daily-summary + alias extraction (gemini_flash in production)
	mergeClient  llm.GenerativeClient // facts+summaries merge narrative (gemma in production)
	formatter    *conversation.Formatter
	resolveName  displayNameFunc
	metrics      *metrics.Collector
	logger       *zap.Logger

	mergeCache *stringLRU
	aliasCache *stringLRU
}

// NewManager wires a Manager over the distributed cache, durable store, the
// two provider roles (a capable batch-summarizer and a
// cheaper merge narrator), the conversation formatter reused for
// rendering a day's messages, and a display-name resolver for prompt text.
func NewManager(
	cacheMgr *cache.Manager,
	st *store.Store,
	dailyClient llm.GenerativeClient,
	mergeClient llm.GenerativeClient,
	formatter *conversation.Formatter,
	resolveName displayNameFunc,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cache:          cacheMgr,
		store:          st,
		dailyClient:    dailyClient,
		mergeClient:    mergeClient,
		formatter:      formatter,
		resolveName:    resolveName,
		metrics:        metricsCollector,
		logger:         logger.With(zap.String("component", "memory_manager")),
		mergeCache:     newStringLRU(mergeCacheSize),
		aliasCache:     newStringLRU(aliasCacheSize),
	}
}

// GetMemories answers the merged per-user memory string for every requested
// user id, nil when nothing is known about that user.
func (m *Manager) GetMemories(ctx context.Context, guildID string, userIDs []string) (map[string]*string, error) {
	ctx, span := tracer.Start(ctx, "memory.get_memories")
	defer span.End()

	if len(userIDs) == 0 {
		return map[string]*string{}, nil
	}

	dates := lastNDates(time.Now().UTC(), windowDays)

	byDate := make(map[string]map[string]string, len(dates))
	var byDateMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	today := dates[0]
	for _, d := range dates {
		d := d
		g.Go(func() error {
			summaries := m.dailySummary(gctx, guildID, d, d.Equal(today))
			byDateMu.Lock()
			byDate[d.Format(dateLayout)] = summaries
			byDateMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-date failures degrade to {} inside dailySummary; never aborts the fan-out

	result := make(map[string]*string, len(userIDs))
	var resultMu sync.Mutex

	ug, ugctx := errgroup.WithContext(ctx)
	for _, userID := range userIDs {
		userID := userID
		ug.Go(func() error {
			facts, err := m.store.GetUserFacts(ugctx, guildID, userID)
			if err != nil {
				m.logger.Warn("facts lookup failed", zap.String("user_id", userID), zap.Error(err))
				facts = ""
			}

			userSummaries := make(map[time.Time]string)
			for _, d := range dates {
				if daily, ok := byDate[d.Format(dateLayout)]; ok {
					if s, ok := daily[userID]; ok {
						userSummaries[d] = s
					}
				}
			}

			memory := m.createUserMemory(ugctx, guildID, userID, facts, userSummaries)
			resultMu.Lock()
			result[userID] = memory
			resultMu.Unlock()
			return nil
		})
	}
	_ = ug.Wait() // per-user failures degrade to nil inside createUserMemory

	return result, nil
}

func lastNDates(from time.Time, n int) []time.Time {
	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = today.AddDate(0, 0, -i)
	}
	return dates
}

// createUserMemory applies the short-circuit rules before falling back to
// merge_context, and cascades facts -> most-recent summary -> nil on merge
// failure.
func (m *Manager) createUserMemory(ctx context.Context, guildID, userID, facts string, daily map[time.Time]string) *string {
	if facts == "" && len(daily) == 0 {
		return nil
	}
	if facts != "" && len(daily) == 0 {
		return &facts
	}
	if facts == "" && len(daily) == 1 {
		for _, v := range daily {
			return &v
		}
	}

	merged, err := m.mergeContext(ctx, guildID, userID, facts, daily)
	if err == nil {
		return &merged
	}

	m.logger.Error("merge_context failed, falling back", zap.String("user_id", userID), zap.Error(err))
	if facts != "" {
		return &facts
	}
	if len(daily) > 0 {
		mostRecent := mostRecentDate(daily)
		v := daily[mostRecent]
		return &v
	}
	return nil
}

func mostRecentDate(daily map[time.Time]string) time.Time {
	var best time.Time
	for d := range daily {
		if d.After(best) {
			best = d
		}
	}
	return best
}

// dailySummary returns the daily summary map for one date, applying the
// today-staleness-rebuild or historical-write-once path. Errors
// never propagate: a failing partition degrades to an empty map so
// aggregation in GetMemories continues.
func (m *Manager) dailySummary(ctx context.Context, guildID string, date time.Time, isToday bool) map[string]string {
	if isToday {
		return m.todaySummary(ctx, guildID, date)
	}
	return m.historicalSummary(ctx, guildID, date)
}

func (m *Manager) todaySummary(ctx context.Context, guildID string, date time.Time) map[string]string {
	cacheKey := dailySummaryCacheKey(guildID, date)

	var entry dailySummaryEntry
	err := m.cache.GetJSON(ctx, cacheKey, &entry)
	switch {
	case cache.IsCacheMiss(err):
		m.metrics.RecordCacheMiss("daily_summary")
		m.scheduleRebuild(guildID, date)
		return map[string]string{}
	case err != nil:
		m.logger.Warn("today summary cache read failed", zap.String("guild_id", guildID), zap.Error(err))
		return map[string]string{}
	}

	m.metrics.RecordCacheHit("daily_summary")
	if time.Since(entry.CreatedAt) >= todayFreshWindow {
		m.scheduleRebuild(guildID, date)
	}
	return entry.Summaries
}

// scheduleRebuild fires a detached rebuild goroutine, given its own
// background context (async rebuilds must not be cancelled when the
// initiating request ends) and its own trace id so rebuild log lines and
// provider calls stay correlatable.
func (m *Manager) scheduleRebuild(guildID string, date time.Time) {
	ctx := ctxkeys.WithTraceID(context.Background(), uuid.NewString())
	go m.rebuildToday(ctx, guildID, date)
}

func (m *Manager) rebuildToday(ctx context.Context, guildID string, date time.Time) {
	lockKey := rebuildLockKey(guildID, date)
	ok, err := m.cache.SetNX(ctx, lockKey, "1", rebuildLockTTL)
	if err != nil {
		m.logger.Warn("rebuild lock acquisition failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if !ok {
		return // another goroutine (possibly another process) already owns the rebuild
	}
	defer func() {
		if err := m.cache.Delete(ctx, lockKey); err != nil {
			m.logger.Warn("rebuild lock release failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}()

	outcome := "success"
	summaries, err := m.createDailySummaries(ctx, guildID, date)
	if err != nil {
		if llm.IsBlocked(err) {
			outcome = "blocked"
		} else {
			outcome = "error"
		}
		m.logger.Warn("daily summary rebuild failed", zap.String("guild_id", guildID), zap.Error(err))
		summaries = map[string]string{}
	}
	m.metrics.RecordDailySummaryJob("today", outcome)

	entry := dailySummaryEntry{Summaries: summaries, CreatedAt: time.Now()}
	cacheKey := dailySummaryCacheKey(guildID, date)
	if err := m.cache.SetJSON(ctx, cacheKey, entry, dailySummaryTTL); err != nil {
		m.logger.Warn("today summary cache write failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}

	if len(summaries) == 0 {
		return
	}
	touched := make([]string, 0, len(summaries))
	for userID := range summaries {
		touched = append(touched, userID)
	}
	if _, err := m.GetMemories(ctx, guildID, touched); err != nil {
		m.logger.Warn("memory pre-warm after rebuild failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

func (m *Manager) historicalSummary(ctx context.Context, guildID string, date time.Time) map[string]string {
	existing, err := m.store.GetDailySummariesForDate(ctx, guildID, date)
	if err != nil {
		m.logger.Warn("historical summary read failed", zap.String("guild_id", guildID), zap.Error(err))
		return map[string]string{}
	}
	if len(existing) > 0 {
		delete(existing, poisonSentinelUserID)
		m.metrics.RecordCacheHit("daily_summary")
		m.metrics.RecordDailySummaryJob("historical", "success")
		return existing
	}
	m.metrics.RecordCacheMiss("daily_summary")

	hasMessages, err := m.store.HasChatMessagesForDate(ctx, guildID, date)
	if err != nil {
		m.logger.Warn("historical message check failed", zap.String("guild_id", guildID), zap.Error(err))
		return map[string]string{}
	}
	if !hasMessages {
		m.metrics.RecordDailySummaryJob("historical", "success")
		return map[string]string{}
	}

	outcome := "success"
	summaries, err := m.createDailySummaries(ctx, guildID, date)
	if err != nil {
		if llm.IsBlocked(err) {
			outcome = "blocked"
		} else {
			outcome = "error"
		}
		m.logger.Warn("historical summary generation failed", zap.String("guild_id", guildID), zap.Error(err))
		summaries = map[string]string{}
	}
	m.metrics.RecordDailySummaryJob("historical", outcome)

	for userID, summary := range summaries {
		if _, err := m.store.SaveDailySummaryOnce(ctx, guildID, date, userID, summary); err != nil {
			m.logger.Warn("historical summary persist failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		}
	}
	// A Blocked or errored generation with no per-user rows still poisons the
	// day: write a sentinel empty row so the next read's HasChatMessagesForDate
	// short-circuit doesn't re-trigger an identical provider call forever.
	if len(summaries) == 0 {
		if err := m.poisonDate(ctx, guildID, date); err != nil {
			m.logger.Warn("historical summary poison-write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}

	return summaries
}

// poisonDate writes a single empty sentinel row under a reserved user id so
// a Blocked/empty historical generation is never retried, per the preserved
// poisoning decision recorded in DESIGN.md.
func (m *Manager) poisonDate(ctx context.Context, guildID string, date time.Time) error {
	_, err := m.store.SaveDailySummaryOnce(ctx, guildID, date, poisonSentinelUserID, "")
	return err
}

// poisonSentinelUserID is never a real Discord snowflake (they are
// strictly positive); used only to mark a historical date as "generation
// already attempted" when the attempt produced no per-user summaries (an
// empty result, a Blocked reply, or any other generation error).
const poisonSentinelUserID = "0"

// createDailySummaries renders every message for the date, lists active
// users with optional alias hints, and makes one schema-typed call.
func (m *Manager) createDailySummaries(ctx context.Context, guildID string, date time.Time) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "memory.create_daily_summaries")
	defer span.End()

	rows, err := m.store.GetChatMessagesForDate(ctx, guildID, date)
	if err != nil {
		return nil, fmt.Errorf("load messages for date: %w", err)
	}
	if len(rows) == 0 {
		return map[string]string{}, nil
	}

	convMessages := make([]conversation.ConversationMessage, 0, len(rows))
	activeUsers := make(map[string]struct{})
	for _, r := range rows {
		cm := conversation.ConversationMessage{
			MessageID: strconv.FormatInt(r.MessageID, 10),
			AuthorID:  r.UserID,
			Content:   r.Text,
			Timestamp: r.Timestamp,
		}
		if r.ReplyToID != nil {
			cm.ReplyToID = strconv.FormatInt(*r.ReplyToID, 10)
		}
		convMessages = append(convMessages, cm)
		activeUsers[r.UserID] = struct{}{}
	}

	rendered := m.formatter.Render(ctx, guildID, convMessages)

	userIDs := make([]string, 0, len(activeUsers))
	for id := range activeUsers {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	var targetUsers strings.Builder
	for _, userID := range userIDs {
		name, err := m.resolveName(ctx, guildID, userID)
		if err != nil || name == "" {
			name = fmt.Sprintf("User(ID:%s)", userID)
		}
		targetUsers.WriteString("<user>\n")
		fmt.Fprintf(&targetUsers, "<user_id>%s</user_id>\n", userID)
		fmt.Fprintf(&targetUsers, "<name>%s</name>\n", name)
		if aliases := m.userAliases(ctx, guildID, userID); len(aliases) > 0 {
			fmt.Fprintf(&targetUsers, "<also_known_as>%s</also_known_as>\n", strings.Join(aliases, ", "))
		}
		targetUsers.WriteString("</user>\n")
	}

	systemPrompt := batchSummarizeDailyPrompt + "\n\n<target_users>\n" + targetUsers.String() + "</target_users>\n" + rendered

	req := llm.Request{
		Message:      "Summarize the day's activity for each listed user.",
		SystemPrompt: systemPrompt,
		Temperature:  0,
	}
	result, err := llm.GenerateStructured[DailySummariesResult](ctx, m.dailyClient, req, dailySummariesSchema())
	if err != nil {
		return nil, err
	}
	return result.Summaries, nil
}

// userAliases derives a short alias list from a user's facts, cached by the
// facts content hash so identical facts strings never re-invoke the
// provider.
func (m *Manager) userAliases(ctx context.Context, guildID, userID string) []string {
	facts, err := m.store.GetUserFacts(ctx, guildID, userID)
	if err != nil || facts == "" {
		return nil
	}

	key := contentHash(facts)
	if cached, ok := m.aliasCache.get(key); ok {
		if cached == "" {
			return nil
		}
		return strings.Split(cached, "\x1f")
	}

	req := llm.Request{
		Message:      fmt.Sprintf("Facts: %s", facts),
		SystemPrompt: "Extract a short list of alternate names or nicknames this person is known by, from the facts given. Return an empty list if none are evident.",
		Temperature:  0,
	}
	result, err := llm.GenerateStructured[AliasListResult](ctx, m.dailyClient, req, aliasListSchema())
	if err != nil {
		m.logger.Debug("alias extraction failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	m.aliasCache.put(key, strings.Join(result.Aliases, "\x1f"))
	return result.Aliases
}

// mergeContext synthesizes facts + the daily window into one narrative,
// checking the in-process LRU then the distributed cache before invoking
// the provider, per the four-part content-addressed key.
func (m *Manager) mergeContext(ctx context.Context, guildID, userID, facts string, daily map[time.Time]string) (string, error) {
	ctx, span := tracer.Start(ctx, "memory.merge_context")
	defer span.End()

	factsHash := contentHash(facts)
	summariesHash := contentHash(concatSummaries(daily))
	lruKey := guildID + "|" + userID + "|" + factsHash + "|" + summariesHash

	if cached, ok := m.mergeCache.get(lruKey); ok {
		m.metrics.RecordMemoryMerge("cache_hit")
		return cached, nil
	}

	distKey := mergedContextCacheKey(guildID, userID, factsHash, summariesHash)
	if cached, err := m.cache.Get(ctx, distKey); err == nil {
		m.mergeCache.put(lruKey, cached)
		m.metrics.RecordMemoryMerge("cache_hit")
		return cached, nil
	}

	userName, err := m.resolveName(ctx, guildID, userID)
	if err != nil || userName == "" {
		userName = fmt.Sprintf("User(ID:%s)", userID)
	}

	var dailyBlocks strings.Builder
	if len(daily) == 0 {
		dailyBlocks.WriteString("No daily summaries available.")
	} else {
		dates := make([]time.Time, 0, len(daily))
		for d := range daily {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
		for _, d := range dates {
			fmt.Fprintf(&dailyBlocks, "<daily_summary>\n<date>%s</date>\n<summary>%s</summary>\n</daily_summary>\n", d.Format(dateLayout), daily[d])
		}
	}

	factsText := facts
	if factsText == "" {
		factsText = "No factual information available."
	}

	systemPrompt := mergeContextPrompt + fmt.Sprintf("\n\n<user_name>%s</user_name>\n<factual_memory>%s</factual_memory>\n<daily_summaries>\n%s</daily_summaries>", userName, factsText, dailyBlocks.String())

	req := llm.Request{
		Message:      "Merge the factual memory with the daily summaries into one coherent narrative.",
		SystemPrompt: systemPrompt,
		Temperature:  0,
	}
	result, err := llm.GenerateStructured[MergeContextResult](ctx, m.mergeClient, req, mergeContextSchema())
	if err != nil {
		m.metrics.RecordMemoryMerge("error")
		return "", err
	}

	m.mergeCache.put(lruKey, result.Context)
	if err := m.cache.Set(ctx, distKey, result.Context, mergedContextTTL); err != nil {
		m.logger.Warn("merged context distributed cache write failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	m.metrics.RecordMemoryMerge("success")
	return result.Context, nil
}

// IngestMessage writes a normalized copy of an incoming message to durable
// storage for later summarization. Non-numeric ids (not a real chat
// snowflake) are logged and dropped rather than failing the caller.
func (m *Manager) IngestMessage(ctx context.Context, guildID string, msg domain.Message) error {
	messageID, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		m.logger.Warn("ingest skipped: non-numeric message id", zap.String("message_id", msg.ID))
		return nil
	}

	row := store.ChatMessageRow{
		GuildID:   guildID,
		ChannelID: msg.ChannelID,
		MessageID: messageID,
		UserID:    msg.AuthorID,
		Text:      msg.Content,
		Timestamp: msg.CreatedAt,
	}
	if msg.ReplyToID != "" {
		if replyID, err := strconv.ParseInt(msg.ReplyToID, 10, 64); err == nil {
			row.ReplyToID = &replyID
		}
	}
	return m.store.AddChatMessage(ctx, row)
}

func contentHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func concatSummaries(daily map[time.Time]string) string {
	dates := make([]time.Time, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	var b strings.Builder
	for _, d := range dates {
		fmt.Fprintf(&b, "%s:%s", d.Format(dateLayout), daily[d])
	}
	return b.String()
}

func dailySummaryCacheKey(guildID string, date time.Time) string {
	return fmt.Sprintf("daily_summary:%s:%s", guildID, date.Format(dateLayout))
}

func rebuildLockKey(guildID string, date time.Time) string {
	return fmt.Sprintf("lock:daily:%s:%s", guildID, date.Format(dateLayout))
}

func mergedContextCacheKey(guildID, userID, factsHash, summariesHash string) string {
	return fmt.Sprintf("ctx:%s:%s:%s:%s", guildID, userID, factsHash, summariesHash)
}

// BuildMemoryPrompt renders the <memory> blocks the generators inline into a
// prompt, skipping users with nothing known.
func (m *Manager) BuildMemoryPrompt(ctx context.Context, guildID string, userIDs []string) (string, error) {
	if len(userIDs) == 0 {
		return "", nil
	}
	memories, err := m.GetMemories(ctx, guildID, userIDs)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, userID := range userIDs {
		content := memories[userID]
		if content == nil || *content == "" {
			continue
		}
		name, err := m.resolveName(ctx, guildID, userID)
		if err != nil || name == "" {
			name = fmt.Sprintf("User(ID:%s)", userID)
		}
		fmt.Fprintf(&b, "<memory>\n<name>%s</name>\n<facts>%s</facts>\n</memory>\n", name, *content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
