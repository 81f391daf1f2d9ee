// Package store provides the GORM-backed durable storage layer: the
// ingested chat log, per-user facts, historical daily summaries, and the
// joke/reaction tracking table. Schema matches internal/migration's SQL
// migrations exactly.
package store

import "time"

// ChatMessageRow is a single ingested chat message, normalized from the
// inbound domain.Message the conversation graph builder fetched.
type ChatMessageRow struct {
	GuildID    string    `gorm:"column:guild_id;not null;index:idx_chat_messages_guild_date,priority:1"`
	ChannelID  string    `gorm:"column:channel_id;not null"`
	MessageID  int64     `gorm:"column:message_id;primaryKey"`
	UserID     string    `gorm:"column:user_id;not null"`
	Text       string    `gorm:"column:text;not null"`
	Timestamp  time.Time `gorm:"column:ts;not null;index:idx_chat_messages_guild_date,priority:2"`
	ReplyToID  *int64    `gorm:"column:reply_to_id"`
}

func (ChatMessageRow) TableName() string { return "chat_messages" }

// MessageRow is the minimal normalized text record the joke generator and
// language-detection pipeline reads back (distinct from ChatMessageRow,
// which carries the richer chat-log fields).
type MessageRow struct {
	MessageID    int64  `gorm:"column:message_id;primaryKey"`
	Content      string `gorm:"column:content;not null"`
	LanguageCode string `gorm:"column:language_code;not null;default:''"`
}

func (MessageRow) TableName() string { return "messages" }

// JokeRow tracks a generated joke message and the reaction count it
// accumulated, keyed by the joke's own message id -- a preserved
// Open Question decision ("joke cache keyed by message id only") lives here.
type JokeRow struct {
	JokeMessageID   int64 `gorm:"column:joke_message_id;primaryKey"`
	SourceMessageID int64 `gorm:"column:source_message_id;not null"`
	ReactionCount   int   `gorm:"column:reaction_count;not null;default:0"`
}

func (JokeRow) TableName() string { return "jokes" }

// UserFactRow is the persistent FACT-route-mutable memory partition (the
// layer 1).
type UserFactRow struct {
	GuildID string `gorm:"column:guild_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey"`
	Content string `gorm:"column:content;not null;default:''"`
}

func (UserFactRow) TableName() string { return "user_facts" }

// DailySummaryRow is one user's historical daily summary (memory layer 2,
// durable half). Today's summary lives in the distributed cache instead;
// rows here are written once and never updated once non-empty -- a Blocked
// provider call during generation intentionally writes an empty summary,
// permanently poisoning that (guild, date, user) per the preserved Open
// Question decision.
type DailySummaryRow struct {
	GuildID string    `gorm:"column:guild_id;primaryKey"`
	Date    time.Time `gorm:"column:date;primaryKey"`
	UserID  string    `gorm:"column:user_id;primaryKey"`
	Summary string    `gorm:"column:summary;not null;default:''"`
}

func (DailySummaryRow) TableName() string { return "daily_summaries" }
