// Package openaicompat provides a shared base implementation for
// OpenAI-compatible LLM providers.
//
// Backends like xAI's Grok expose the same API format (OpenAI Chat
// Completions). Instead of duplicating the HTTP handling, message
// conversion, and error mapping in each provider, they embed
// openaicompat.Provider and supply only their identity: provider name,
// base URL, API key, and model defaults.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:  "grok",
//	    APIKey:        cfg.APIKey,
//	    BaseURL:       "https://api.x.ai",
//	    DefaultModel:  cfg.Model,
//	    FallbackModel: "grok-beta",
//	}, logger)
//
// The provider exposes Completion (one synchronous chat call) and
// HealthCheck (an authenticated probe of /v1/models); per-request API-key
// overrides arrive via llm.WithCredentialOverride.
package openaicompat
