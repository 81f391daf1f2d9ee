// Package store's Store type wraps a *database.Pool with the
// concrete queries the memory manager and the joke generator need: facts,
// historical daily summaries, the message/joke log, and chat-message
// ingestion.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB is the subset of *database.Pool the Store needs, accepted as an
// interface so tests can supply a bare *gorm.DB-backed fake.
type DB interface {
	DB() *gorm.DB
	WithTransaction(ctx context.Context, fn database.TransactionFunc) error
}

// Store is the durable-storage repository layer.
type Store struct {
	db DB
}

// New wraps a connection pool in a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

// GetUserFacts returns the long-term fact string for (guildID, userID), or
// "" if the user has none recorded yet.
func (s *Store) GetUserFacts(ctx context.Context, guildID, userID string) (string, error) {
	var row UserFactRow
	err := s.db.DB().WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user facts: %w", err)
	}
	return row.Content, nil
}

// SaveUserFacts upserts the fact string for (guildID, userID). The FACT
// route is the only caller that mutates this partition.
func (s *Store) SaveUserFacts(ctx context.Context, guildID, userID, content string) error {
	row := UserFactRow{GuildID: guildID, UserID: userID, Content: content}
	err := s.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save user facts: %w", err)
	}
	return nil
}

// GetDailySummary returns a historical summary row for (guildID, date,
// userID). ok is false if no row has been written yet -- distinct from a
// written-but-empty (poisoned) row, which returns ok=true and summary="".
func (s *Store) GetDailySummary(ctx context.Context, guildID string, date time.Time, userID string) (summary string, ok bool, err error) {
	var row DailySummaryRow
	dbErr := s.db.DB().WithContext(ctx).
		Where("guild_id = ? AND date = ? AND user_id = ?", guildID, date, userID).
		First(&row).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if dbErr != nil {
		return "", false, fmt.Errorf("get daily summary: %w", dbErr)
	}
	return row.Summary, true, nil
}

// GetDailySummaries returns every written row for the given dates in one
// query, keyed by userID -> date -> summary, so callers assembling a
// multi-user, multi-day window issue a single round trip.
func (s *Store) GetDailySummaries(ctx context.Context, guildID string, dates []time.Time) (map[string]map[time.Time]string, error) {
	if len(dates) == 0 {
		return map[string]map[time.Time]string{}, nil
	}
	var rows []DailySummaryRow
	err := s.db.DB().WithContext(ctx).
		Where("guild_id = ? AND date IN ?", guildID, dates).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get daily summaries: %w", err)
	}
	out := make(map[string]map[time.Time]string)
	for _, r := range rows {
		if out[r.UserID] == nil {
			out[r.UserID] = make(map[time.Time]string)
		}
		out[r.UserID][r.Date] = r.Summary
	}
	return out, nil
}

// GetDailySummariesForDate returns every written row for a single historical
// date, keyed by userID. An empty map means no summary has been generated
// yet for this date (distinct from messages not existing at all -- callers
// fall back to HasChatMessagesForDate to tell the two apart).
func (s *Store) GetDailySummariesForDate(ctx context.Context, guildID string, date time.Time) (map[string]string, error) {
	byUser, err := s.GetDailySummaries(ctx, guildID, []time.Time{date})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(byUser))
	for userID, byDate := range byUser {
		if summary, ok := byDate[date]; ok {
			out[userID] = summary
		}
	}
	return out, nil
}

// SaveDailySummaryOnce writes a historical daily summary row exactly once:
// an existing row, including an intentionally poisoned empty one, is never
// overwritten. Returns whether this call actually wrote it.
func (s *Store) SaveDailySummaryOnce(ctx context.Context, guildID string, date time.Time, userID, summary string) (wrote bool, err error) {
	row := DailySummaryRow{GuildID: guildID, Date: date, UserID: userID, Summary: summary}
	res := s.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("save daily summary: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasChatMessagesForDate reports whether any ingested chat message exists
// for guildID on date, used to decide whether a historical summary is worth
// computing at all versus trivially empty.
func (s *Store) HasChatMessagesForDate(ctx context.Context, guildID string, date time.Time) (bool, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var count int64
	err := s.db.DB().WithContext(ctx).Model(&ChatMessageRow{}).
		Where("guild_id = ? AND ts >= ? AND ts < ?", guildID, start, end).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("has chat messages for date: %w", err)
	}
	return count > 0, nil
}

// GetChatMessagesForUserAndDate returns the raw ingested text for a single
// user on a single calendar day, the input to that user's daily summary.
func (s *Store) GetChatMessagesForUserAndDate(ctx context.Context, guildID, userID string, date time.Time) ([]ChatMessageRow, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var rows []ChatMessageRow
	err := s.db.DB().WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND ts >= ? AND ts < ?", guildID, userID, start, end).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get chat messages for user and date: %w", err)
	}
	return rows, nil
}

// GetActiveUsersForDate returns the distinct user ids who posted in guildID
// on date, the participant set the daily-summary batch job fans out over.
func (s *Store) GetActiveUsersForDate(ctx context.Context, guildID string, date time.Time) ([]string, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var ids []string
	err := s.db.DB().WithContext(ctx).Model(&ChatMessageRow{}).
		Where("guild_id = ? AND ts >= ? AND ts < ?", guildID, start, end).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("get active users for date: %w", err)
	}
	return ids, nil
}

// GetChatMessagesForDate returns every ingested message for guildID on date
// across all users, in posting order -- the raw input to a full-channel
// daily-summary batch job.
func (s *Store) GetChatMessagesForDate(ctx context.Context, guildID string, date time.Time) ([]ChatMessageRow, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var rows []ChatMessageRow
	err := s.db.DB().WithContext(ctx).
		Where("guild_id = ? AND ts >= ? AND ts < ?", guildID, start, end).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get chat messages for date: %w", err)
	}
	return rows, nil
}

// AddChatMessage ingests a single chat message for later summarization.
func (s *Store) AddChatMessage(ctx context.Context, row ChatMessageRow) error {
	err := s.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("add chat message: %w", err)
	}
	return nil
}

// GetMessageLanguage returns the cached language code for messageID, or ""
// if it has never been recorded.
func (s *Store) GetMessageLanguage(ctx context.Context, messageID int64) (string, error) {
	var row MessageRow
	err := s.db.DB().WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get message language: %w", err)
	}
	return row.LanguageCode, nil
}

// SaveMessage upserts a message's content and detected language; on
// conflict both columns are overwritten with the new values.
func (s *Store) SaveMessage(ctx context.Context, messageID int64, content, languageCode string) error {
	row := MessageRow{MessageID: messageID, Content: content, LanguageCode: languageCode}
	err := s.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "language_code"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// SaveJoke records a generated joke message and its source, inserting (or
// refreshing the content of) both message rows and upserting the joke
// relation, all inside one transaction.
func (s *Store) SaveJoke(ctx context.Context, sourceMessageID, jokeMessageID int64, sourceContent, jokeContent, sourceLang, jokeLang string, reactionCount int) error {
	return s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, m := range []MessageRow{
			{MessageID: sourceMessageID, Content: sourceContent, LanguageCode: sourceLang},
			{MessageID: jokeMessageID, Content: jokeContent, LanguageCode: jokeLang},
		} {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "message_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"content", "language_code"}),
			}).Create(&m).Error; err != nil {
				return fmt.Errorf("upsert message %d: %w", m.MessageID, err)
			}
		}

		joke := JokeRow{JokeMessageID: jokeMessageID, SourceMessageID: sourceMessageID, ReactionCount: reactionCount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "joke_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source_message_id", "reaction_count"}),
		}).Create(&joke).Error; err != nil {
			return fmt.Errorf("upsert joke: %w", err)
		}
		return nil
	})
}

// IncrementJokeReactionCount bumps the reaction count on an already-saved
// joke by one, used when a further reaction event arrives and the exact
// total is not known to the caller.
func (s *Store) IncrementJokeReactionCount(ctx context.Context, jokeMessageID int64) error {
	err := s.db.DB().WithContext(ctx).
		Model(&JokeRow{}).
		Where("joke_message_id = ?", jokeMessageID).
		Update("reaction_count", gorm.Expr("reaction_count + 1")).Error
	if err != nil {
		return fmt.Errorf("increment joke reaction count: %w", err)
	}
	return nil
}

// UpdateJokeReactionCount sets the reaction count recorded against a joke
// message, called as reactions accumulate after the joke was posted.
func (s *Store) UpdateJokeReactionCount(ctx context.Context, jokeMessageID int64, reactionCount int) error {
	err := s.db.DB().WithContext(ctx).
		Model(&JokeRow{}).
		Where("joke_message_id = ?", jokeMessageID).
		Update("reaction_count", reactionCount).Error
	if err != nil {
		return fmt.Errorf("update joke reaction count: %w", err)
	}
	return nil
}

// SampledJoke is one (source, joke) pair drawn by GetRandomJokes.
type SampledJoke struct {
	SourceContent string
	JokeContent   string
}

type jokeCandidate struct {
	SourceContent string
	JokeContent   string
	ReactionCount int
}

// GetRandomJokes returns up to n jokes sampled with weight
// random() * exponent^reaction_count in the requested language. The
// weighting runs in Go rather than as a server-side ORDER BY expression so
// it behaves identically across postgres/mysql/sqlite.
func (s *Store) GetRandomJokes(ctx context.Context, n int, languageCode string, exponent float64) ([]SampledJoke, error) {
	var candidates []jokeCandidate
	err := s.db.DB().WithContext(ctx).
		Table("jokes AS j").
		Select("m1.content AS source_content, m2.content AS joke_content, j.reaction_count AS reaction_count").
		Joins("JOIN messages AS m1 ON j.source_message_id = m1.message_id").
		Joins("JOIN messages AS m2 ON j.joke_message_id = m2.message_id").
		Where("m2.language_code = ?", languageCode).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("get random jokes: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	type weighted struct {
		candidate jokeCandidate
		weight    float64
	}
	weightedCandidates := make([]weighted, len(candidates))
	for i, c := range candidates {
		weightedCandidates[i] = weighted{candidate: c, weight: rand.Float64() * math.Pow(exponent, float64(c.ReactionCount))}
	}
	sort.Slice(weightedCandidates, func(i, j int) bool {
		return weightedCandidates[i].weight > weightedCandidates[j].weight
	})

	if n > len(weightedCandidates) {
		n = len(weightedCandidates)
	}
	out := make([]SampledJoke, n)
	for i := 0; i < n; i++ {
		out[i] = SampledJoke{
			SourceContent: weightedCandidates[i].candidate.SourceContent,
			JokeContent:   weightedCandidates[i].candidate.JokeContent,
		}
	}
	return out, nil
}
