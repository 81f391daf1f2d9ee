// Copyright 2024 urmom-bot Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides the unified LLM provider abstraction the reply
pipeline generates through.

# Overview

The llm package defines two client contracts and the decorators composed
around them. Provider is the low-level chat surface a concrete backend
(Gemini, Claude, Grok, Codex) implements; GenerativeClient is the
single-call surface everything above the provider layer consumes, produced
by wrapping a Provider in a CompletionAdapter and then in the retry and
composite decorators:

	provider (llm/providers/*)
	  └── CompletionAdapter   capability gating, metrics, token counts
	        └── retry.RetryGenerativeClient   bounded retry, Blocked never retried
	              └── composite.Client        ordered/shuffled fallback

# Provider Interface

The core Provider interface defines the contract for all backends:

	type Provider interface {
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    Name() string
	}

# GenerativeClient

Callers issue a single generate-style request and get text back:

	client.Generate(ctx, llm.Request{
	    Message:      "Hello!",
	    SystemPrompt: "...",
	    Temperature:  0.7,
	})

A Request may also carry few-shot pairs, a grounding flag, a response
schema, and a single image. CompletionAdapter rejects options the wrapped
backend cannot honor with ErrUnsupportedOption; few-shot pairs on a
text-only backend are folded into the message history with a warning
instead.

# Structured Output

GenerateStructured serializes a JSON Schema into the prompt, parses the
reply (stripping markdown code fences), and retries up to two times with
the parse failure appended as a correction before failing with
ErrSchemaValidation:

	result, err := llm.GenerateStructured[RouteSelection](ctx, client, req, schema)

# Error Handling

Errors crossing the provider boundary are *types.Error with a structured
code. Blocked (a content-policy refusal) is load-bearing: the retry
decorator never retries it, and the composite decorator still advances to
the next delegate because it is a non-result for this input.

	if llm.IsBlocked(err) {
	    // do not retry; store an empty summary, fall back, etc.
	}

Use IsRetryable to check if an error can be retried:

	if llm.IsRetryable(err) {
	    // Implement retry logic
	}

# Credential Override

A caller can override a provider's configured API key/secret for a single
request via context, without touching the provider's own config:

	ctx = llm.WithCredentialOverride(ctx, llm.CredentialOverride{APIKey: "..."})

See the subpackages for additional functionality:
  - llm/composite: Shuffled multi-client fallback with a bad-response predicate
  - llm/retry: Bounded retry with full jitter
  - llm/providers/*: Provider-specific implementations
*/
package llm
