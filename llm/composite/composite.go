// Package composite implements the fallback-chain decorator: try a
// sequence of llm.GenerativeClient instances in order (or shuffled) until
// one returns a response the caller doesn't consider "bad", recording which
// client answered and at what position in the chain.
package composite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("urmombot/llm/composite")

// IsBadResponse decides whether a successful response should still trigger
// fallback to the next client in the chain (the router uses this for the
// NOTSURE escalation).
type IsBadResponse func(response string) bool

// Client tries an ordered (or shuffled) list of llm.GenerativeClient
// delegates, returning the first response that both succeeds and is not
// flagged bad, or a composite error wrapping the last underlying error.
type Client struct {
	name          string
	delegates     []llm.GenerativeClient
	isBadResponse IsBadResponse
	shuffle       bool
	logger        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithIsBadResponse sets the bad-response predicate; the default never
// flags a response as bad.
func WithIsBadResponse(f IsBadResponse) Option {
	return func(c *Client) { c.isBadResponse = f }
}

// WithShuffle randomizes delegate order on every call.
func WithShuffle(shuffle bool) Option {
	return func(c *Client) { c.shuffle = shuffle }
}

// New builds a composite client named name over delegates, which must be
// non-empty.
func New(name string, delegates []llm.GenerativeClient, logger *zap.Logger, opts ...Option) (*Client, error) {
	if len(delegates) == 0 {
		return nil, errors.New("composite: requires at least one delegate")
	}

	c := &Client{
		name:          name,
		delegates:     delegates,
		isBadResponse: func(string) bool { return false },
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	order := make([]llm.GenerativeClient, len(c.delegates))
	copy(order, c.delegates)
	if c.shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	ctx, span := tracer.Start(ctx, "composite_generate")
	defer span.End()

	names := make([]string, len(order))
	for i, d := range order {
		names[i] = d.Name()
	}
	span.SetAttributes(attribute.String("client_order", strings.Join(names, ",")))

	var lastErr error
	for i, delegate := range order {
		resp, err := delegate.Generate(ctx, req)
		if err != nil {
			lastErr = err
			c.logger.Warn("composite delegate failed",
				zap.String("composite", c.name),
				zap.String("delegate", delegate.Name()),
				zap.Int("position", i),
				zap.Error(err),
			)
			continue
		}
		if c.isBadResponse(resp) {
			c.logger.Warn("composite delegate produced a bad response, falling back",
				zap.String("composite", c.name),
				zap.String("delegate", delegate.Name()),
				zap.Int("position", i),
			)
			continue
		}

		span.SetAttributes(
			attribute.String("succeeded_client", delegate.Name()),
			attribute.Int("succeeded_position", i),
		)
		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("all delegates returned a bad response")
	}
	return "", fmt.Errorf("composite %q: all %d delegates failed: %w", c.name, len(order), lastErr)
}
