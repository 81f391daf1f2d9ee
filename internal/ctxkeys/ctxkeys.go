// Package ctxkeys defines the well-known context.Context keys threaded
// through the pipeline for correlation: a per-request trace id (propagated to
// telemetry spans and log fields) and the guild/user the request concerns.
package ctxkeys

import "context"

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	guildIDKey contextKey = "guild_id"
	userIDKey  contextKey = "user_id"
)

// WithTraceID attaches a request-scoped trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id attached to ctx, if any.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithGuildID attaches the originating guild id to ctx.
func WithGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, guildIDKey, guildID)
}

// GuildID returns the guild id attached to ctx, if any.
func GuildID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(guildIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithUserID attaches the originating user id to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user id attached to ctx, if any.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
