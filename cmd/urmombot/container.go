package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gruzilkin/urmom-bot-sub000/bot"
	"github.com/gruzilkin/urmom-bot-sub000/config"
	"github.com/gruzilkin/urmom-bot-sub000/conversation"
	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/generator"
	"github.com/gruzilkin/urmom-bot-sub000/internal/cache"
	"github.com/gruzilkin/urmom-bot-sub000/internal/database"
	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"
	"github.com/gruzilkin/urmom-bot-sub000/internal/store"
	"github.com/gruzilkin/urmom-bot-sub000/internal/telemetry"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/llm/composite"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers/anthropic"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers/codex"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers/gemini"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers/grok"
	"github.com/gruzilkin/urmom-bot-sub000/llm/retry"
	"github.com/gruzilkin/urmom-bot-sub000/memory"
	"github.com/gruzilkin/urmom-bot-sub000/postprocess"
	"github.com/gruzilkin/urmom-bot-sub000/router"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Container owns every external handle the pipeline needs -- providers,
// cache, durable store, telemetry -- and is constructed exactly once at
// startup (see design note "Global singletons"). Every entry point threads
// it explicitly instead of relying on package-level state.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers
	Metrics   *metrics.Collector
	DB        *database.Pool
	Cache     *cache.Manager
	Store     *store.Store

	Router     *router.Router
	Builder    *conversation.Builder
	Formatter  *conversation.Formatter
	Memory     *memory.Manager
	Dispatcher *generator.Dispatcher
	Handler    *bot.Handler

	Wisdom         *generator.WisdomGenerator
	DevilsAdvocate *generator.DevilsAdvocateGenerator
	Joke           *generator.JokeGenerator

	// health holds the raw (undecorated) provider clients keyed by backend
	// name, probed by the health subcommand.
	health map[string]llm.HealthChecker
}

// HealthCheck probes the database, the distributed cache, and every
// configured provider backend. The returned map holds one entry per target;
// a nil value means the target answered.
func (c *Container) HealthCheck(ctx context.Context) map[string]error {
	results := map[string]error{
		"database": c.DB.Ping(ctx),
		"redis":    c.Cache.Ping(ctx),
	}
	for name, checker := range c.health {
		_, err := checker.HealthCheck(ctx)
		results[name] = err
	}
	return results
}

// NewContainer wires the full pipeline over cfg. gateway/resolver may be nil
// at construction time -- the chat-gateway adapter that drives inbound
// traffic is an external collaborator this module only defines interfaces
// for; the container
// still wires and is usable for migration/health tooling without one, but
// conversation assembly and FACT user resolution will error if invoked
// without a gateway/resolver plugged in.
func NewContainer(cfg *config.Config, logger *zap.Logger, gateway domain.ChatGateway, resolver domain.UserResolver) (*Container, error) {
	metricsCollector := metrics.NewCollector("urmombot", logger)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	gormDB, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool, err := database.NewPool(gormDB, database.Config{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, metricsCollector, logger)
	if err != nil {
		return nil, fmt.Errorf("init database pool: %w", err)
	}
	durableStore := store.New(pool)

	cacheMgr, err := cache.NewManager(cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	geminiProvider := gemini.NewGeminiProvider(providers.GeminiConfig{BaseProviderConfig: baseCfg(cfg.Providers.Gemini)}, logger)
	gemmaProvider := gemini.NewGemmaProvider(providers.GeminiConfig{BaseProviderConfig: baseCfg(cfg.Providers.Gemma)}, logger)
	claudeProvider := anthropic.NewClaudeProvider(providers.ClaudeConfig{BaseProviderConfig: baseCfg(cfg.Providers.Claude)}, logger)
	grokProvider := grok.NewGrokProvider(providers.GrokConfig{BaseProviderConfig: baseCfg(cfg.Providers.Grok)}, logger)
	codexProvider := codex.NewCodexProvider(providers.CodexConfig{BaseProviderConfig: baseCfg(cfg.Providers.Codex)}, logger)
	summarizeProvider := gemini.NewGeminiProvider(providers.GeminiConfig{BaseProviderConfig: baseCfg(cfg.Providers.Summarize)}, logger)

	geminiCaps := llm.AdapterCapabilities{SupportsGrounding: true, SupportsImages: true, SupportsFewShot: true}
	geminiFlash := buildBackend(llm.NewCompletionAdapter(geminiProvider, geminiCaps, metricsCollector, logger), logger)
	gemma := buildBackend(llm.NewCompletionAdapter(gemmaProvider, geminiCaps, metricsCollector, logger), logger)
	claude := buildBackend(llm.NewCompletionAdapter(claudeProvider,
		llm.AdapterCapabilities{SupportsImages: true, SupportsFewShot: true}, metricsCollector, logger), logger)
	grokClient := buildBackend(llm.NewCompletionAdapter(grokProvider,
		llm.AdapterCapabilities{SupportsFewShot: true}, metricsCollector, logger), logger)
	codexClient := buildBackend(llm.NewCompletionAdapter(codexProvider,
		llm.AdapterCapabilities{SupportsFewShot: true}, metricsCollector, logger), logger)
	summarizeClient := buildBackend(llm.NewCompletionAdapter(summarizeProvider, geminiCaps, metricsCollector, logger), logger)

	healthCheckers := map[string]llm.HealthChecker{
		"gemini_flash": geminiProvider,
		"gemma":        gemmaProvider,
		"claude":       claudeProvider,
		"grok":         grokProvider,
		"codex":        codexProvider,
		"summarize":    summarizeProvider,
	}

	proc := postprocess.NewProcessor(summarizeClient, cfg.Chat.MessageLimit, logger)

	famousGen := generator.NewFamousGenerator(
		mustComposite("famous", []llm.GenerativeClient{claude, geminiFlash}, logger, false, nil),
		proc, logger,
	)
	generalGen := generator.NewGeneralGenerator(map[string]llm.GenerativeClient{
		"gemini_flash": geminiFlash,
		"grok":         grokClient,
		"claude":       claude,
		"gemma":        gemma,
		"codex":        codexClient,
	}, proc, logger)
	factGen := generator.NewFactGenerator(gemma, durableStore, resolver, logger)

	wisdomGen := generator.NewWisdomGenerator(
		mustComposite("wisdom", []llm.GenerativeClient{claude, grokClient}, logger, true, nil),
		proc, logger,
	)
	devilsAdvocateGen := generator.NewDevilsAdvocateGenerator(
		mustComposite("devils_advocate", []llm.GenerativeClient{claude, geminiFlash}, logger, false, nil),
		proc, logger,
	)
	languageDetector := router.NewLanguageDetector(geminiFlash, logger)
	jokeGen := generator.NewJokeGenerator(geminiFlash, gemma, durableStore, languageDetector, cfg.Joke.PoolSize, cfg.Joke.Exponent, logger)

	tier1Client := mustComposite("router_tier1", []llm.GenerativeClient{geminiFlash, grokClient}, logger, false, isTier1NotSure)
	rtr := router.NewRouter(tier1Client, geminiFlash, famousGen, generalGen, factGen, metricsCollector, logger)

	builder := conversation.NewBuilder(gateway, logger)
	formatter := conversation.NewFormatter(resolveDisplayName(gateway), logger)

	memMgr := memory.NewManager(cacheMgr, durableStore, geminiFlash, gemma, formatter, resolveDisplayName(gateway), metricsCollector, logger)

	dispatcher := generator.NewDispatcher(rtr, builder, formatter, memMgr, famousGen, generalGen, factGen, wisdomGen, devilsAdvocateGen, languageDetector, generator.DefaultBounds, logger)

	handler := bot.NewHandler(gateway, dispatcher, jokeGen, durableStore, memMgr, cacheMgr, languageDetector, cfg.Chat.BotUserID, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Telemetry:      otelProviders,
		Metrics:        metricsCollector,
		DB:             pool,
		Cache:          cacheMgr,
		Store:          durableStore,
		Router:         rtr,
		Builder:        builder,
		Formatter:      formatter,
		Memory:         memMgr,
		Dispatcher:     dispatcher,
		Handler:        handler,
		Wisdom:         wisdomGen,
		DevilsAdvocate: devilsAdvocateGen,
		Joke:           jokeGen,
		health:         healthCheckers,
	}, nil
}

// Close releases every owned external handle in reverse wiring order.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := c.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := c.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("container close: %s", strings.Join(msgs, "; "))
}

// openDatabase opens a *gorm.DB over cfg's driver. Supported drivers are
// exactly those config.validateConfig accepts: postgres, mysql, sqlite.
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// baseCfg adapts a config.ProviderConfig (the env-loaded, per-backend shape)
// into the providers.BaseProviderConfig every concrete provider constructor
// embeds.
func baseCfg(p config.ProviderConfig) providers.BaseProviderConfig {
	return providers.BaseProviderConfig{APIKey: p.APIKey, Model: p.Model}
}

// buildBackend wraps a completion-style provider adapter in the bounded
// retry decorator: 3 tries, full jitter, Blocked never retried.
func buildBackend(adapter *llm.CompletionAdapter, logger *zap.Logger) llm.GenerativeClient {
	policy, err := retry.NewGeneratePolicy(0, 3, true)
	if err != nil {
		// NewGeneratePolicy only errors on a caller-supplied XOR violation;
		// the arguments above are fixed and satisfy it.
		panic(err)
	}
	return retry.NewRetryGenerativeClient(adapter, policy, logger)
}

// mustComposite builds a composite fallback client; the constructor only errors on
// an empty delegate list, which never happens here since every call site
// passes a fixed, non-empty literal.
func mustComposite(name string, delegates []llm.GenerativeClient, logger *zap.Logger, shuffle bool, isBad composite.IsBadResponse) llm.GenerativeClient {
	opts := []composite.Option{composite.WithShuffle(shuffle)}
	if isBad != nil {
		opts = append(opts, composite.WithIsBadResponse(isBad))
	}
	c, err := composite.New(name, delegates, logger, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// isTier1NotSure flags a tier-1 route-selection reply as bad when its route
// field is NOTSURE, triggering composite fallback to a stronger model.
func isTier1NotSure(response string) bool {
	var parsed struct {
		Route string `json:"route"`
	}
	if err := json.Unmarshal([]byte(stripFence(response)), &parsed); err != nil {
		return false
	}
	return strings.EqualFold(parsed.Route, "NOTSURE")
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// resolveDisplayName adapts a possibly-nil domain.ChatGateway into the bare
// function signature conversation.Formatter and memory.Manager depend on
// (not domain.ChatGateway directly, so neither package needs to import
// domain's full interface).
func resolveDisplayName(gateway domain.ChatGateway) func(ctx context.Context, guildID, userID string) (string, error) {
	return func(ctx context.Context, guildID, userID string) (string, error) {
		if gateway == nil {
			return "", fmt.Errorf("no chat gateway configured")
		}
		return gateway.ResolveDisplayName(ctx, guildID, userID)
	}
}
