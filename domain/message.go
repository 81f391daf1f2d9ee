// Package domain holds the chat-facing types shared across the bot's
// conversation graph, router, memory manager, and generators: inbound
// messages, route classification, and the per-route extracted parameters.
package domain

import "time"

// Embedding is a textual description of an attachment or link embed carried
// by a Message -- produced by the article/image extraction collaborators
// outside this module, consumed read-only here. When the gateway
// delivers an embedding without a description, URL/AttachmentID let the
// handler look one up in the distributed cache (article:/attachment: keys)
// the extraction collaborators populate.
type Embedding struct {
	Type         string // "image" or "article"
	URL          string // source url for Type "article", empty otherwise
	AttachmentID string // host attachment id for Type "image", empty otherwise
	Description  string
}

// Message is a single chat message as delivered by the host platform's
// gateway and as stored in the durable conversation log.
type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	Content    string
	ReplyToID  string // empty if this message does not reply to another
	Mentions   []string
	Embeddings []Embedding
	CreatedAt  time.Time
}

// ReactionPayload describes an inbound reaction-add event. The bot's
// OnReactionAdd handler turns it into a joke request (clown or country
// flag), a wisdom or devil's-advocate reply, or a joke-detection check.
type ReactionPayload struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}
