package config

import "time"

// DefaultConfig returns the baseline configuration before any YAML overlay or
// environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Providers: DefaultProvidersConfig(),
		Joke:      DefaultJokeConfig(),
		Chat:      DefaultChatConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultDatabaseConfig returns sane defaults for a local sqlite dev setup.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "urmombot.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultRedisConfig returns defaults for a local Redis instance.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultProvidersConfig returns the per-backend defaults. API keys are left
// empty; Load fails closed only on the temperature/driver constraints, not on
// missing credentials, since some deployments run a subset of backends.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Gemini:    ProviderConfig{Model: "gemini-2.5-flash", DefaultTemperature: 0.4},
		Gemma:     ProviderConfig{Model: "gemma-3-27b-it", DefaultTemperature: 0.4},
		Claude:    ProviderConfig{Model: "claude-sonnet-4-20250514", DefaultTemperature: 0.4},
		Grok:      ProviderConfig{Model: "grok-4", DefaultTemperature: 0.6},
		Codex:     ProviderConfig{Model: "gpt-5.2", DefaultTemperature: 0.3},
		Summarize: ProviderConfig{Model: "gemini-2.5-flash", DefaultTemperature: 0.2},
	}
}

// DefaultJokeConfig returns the sampled-joke pool defaults.
func DefaultJokeConfig() JokeConfig {
	return JokeConfig{
		PoolSize: 50,
		Exponent: 1.5,
	}
}

// DefaultChatConfig returns the platform length limit of the deployed chat service.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		MessageLimit: 2000,
	}
}

// DefaultLogConfig returns info-level JSON logging, suitable for production.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultTelemetryConfig returns telemetry disabled by default; deployments
// turn it on explicitly once an OTLP collector is reachable.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     false,
		ServiceName: "urmom-bot",
		SampleRate:  1.0,
	}
}
