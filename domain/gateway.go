package domain

import "context"

// ChatGateway is the outbound surface the bot uses to talk back to the host
// chat platform: sending/replying/deleting messages, fetching history for
// the conversation graph, and resolving a user's display name for the
// conversation formatter and the memory manager.
type ChatGateway interface {
	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	ReplyTo(ctx context.Context, channelID, replyToID, content string) (Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// FetchHistory returns up to limit messages in channelID older than
	// before (exclusive), newest first.
	FetchHistory(ctx context.Context, channelID, before string, limit int) ([]Message, error)

	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)

	ResolveDisplayName(ctx context.Context, guildID, userID string) (string, error)
}

// UserResolver resolves a FACT route's free-text user_mention (a Discord
// mention token or a bare nickname) to a concrete user id. Failure is
// user-visible ("I couldn't identify that user") and has no side effects.
type UserResolver interface {
	ResolveUser(ctx context.Context, guildID, mention string) (userID string, ok bool)
}
