// Package config loads configuration from defaults, an optional YAML file,
// and environment variable overrides, in that order of priority.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`
	Joke      JokeConfig      `yaml:"joke" env:"JOKE"`
	Chat      ChatConfig      `yaml:"chat" env:"CHAT"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// DatabaseConfig holds the durable-storage connection parameters.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres, mysql, sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig holds the distributed-cache connection parameters.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// ProviderConfig is the per-backend API key, model id, and default temperature.
type ProviderConfig struct {
	APIKey             string  `yaml:"api_key" env:"API_KEY"`
	Model              string  `yaml:"model" env:"MODEL"`
	DefaultTemperature float64 `yaml:"default_temperature" env:"DEFAULT_TEMPERATURE"`
}

// ProvidersConfig holds one ProviderConfig per backend named in the GENERAL
// route's ai_backend enum, plus the dedicated summarizing backend the
// response post-processor shrinks overlong replies with.
type ProvidersConfig struct {
	Gemini    ProviderConfig `yaml:"gemini" env:"GEMINI"`
	Gemma     ProviderConfig `yaml:"gemma" env:"GEMMA"`
	Claude    ProviderConfig `yaml:"claude" env:"CLAUDE"`
	Grok      ProviderConfig `yaml:"grok" env:"GROK"`
	Codex     ProviderConfig `yaml:"codex" env:"CODEX"`
	Summarize ProviderConfig `yaml:"summarize" env:"SUMMARIZE"`
}

// JokeConfig controls the sampled-joke pool selection weighting.
type JokeConfig struct {
	PoolSize int     `yaml:"pool_size" env:"POOL_SIZE"`
	Exponent float64 `yaml:"exponent" env:"EXPONENT"`
}

// ChatConfig holds the chat-gateway token, the bot's own user id (used by
// the mention gate), and the platform's message length limit.
type ChatConfig struct {
	ServiceToken string `yaml:"service_token" env:"SERVICE_TOKEN"`
	BotUserID    string `yaml:"bot_user_id" env:"BOT_USER_ID"`
	MessageLimit int    `yaml:"message_limit" env:"MESSAGE_LIMIT"`
}

// LogConfig controls zap logger construction.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // json, console
}

// TelemetryConfig controls the OTel SDK (internal/telemetry).
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads a Config via the builder pattern: defaults, then an optional
// YAML file, then environment variables prefixed with envPrefix.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the "URMOMBOT" environment prefix and the
// built-in validators registered.
func NewLoader() *Loader {
	l := &Loader{
		envPrefix: "URMOMBOT",
	}
	l.validators = append(l.validators, validateConfig)
	return l
}

// WithConfigPath sets an optional YAML overlay file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator registers an additional validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load assembles the config: defaults -> YAML file -> environment -> validate.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads config the same way Load does (defaults, then the optional
// YAML file at path, then the environment), panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// validateConfig enforces the startup constraints: every
// per-provider default temperature validates to [0, 2], the joke pool size is
// positive, and the database driver is one this binary actually supports.
func validateConfig(c *Config) error {
	var errs []string

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	for name, p := range map[string]ProviderConfig{
		"gemini": c.Providers.Gemini, "gemma": c.Providers.Gemma,
		"claude": c.Providers.Claude, "grok": c.Providers.Grok,
		"codex": c.Providers.Codex, "summarize": c.Providers.Summarize,
	} {
		if p.DefaultTemperature < 0 || p.DefaultTemperature > 2 {
			errs = append(errs, fmt.Sprintf("%s: default_temperature must be in [0, 2], got %v", name, p.DefaultTemperature))
		}
	}

	if c.Joke.PoolSize <= 0 {
		errs = append(errs, "joke.pool_size must be positive")
	}
	if c.Joke.Exponent < 0 {
		errs = append(errs, "joke.exponent must be non-negative")
	}

	if c.Chat.MessageLimit <= 0 {
		errs = append(errs, "chat.message_limit must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the database/sql-style connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
