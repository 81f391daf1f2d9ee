package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to an optional YAML config overlay")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting urmombot",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	// The chat-gateway adapter (event delivery, mention resolution, message
	// send/delete/react) is an external collaborator out of this module's
	// scope -- a deployment plugs its platform adapter in here by
	// implementing domain.ChatGateway/domain.UserResolver, passing them to
	// NewContainer, and feeding gateway events into Container.Handler's
	// OnMessage/OnReactionAdd. Running with neither wires the full pipeline
	// for inspection and health/migration tooling; conversation assembly and
	// FACT user resolution return an error if invoked without one.
	container, err := NewContainer(cfg, logger, nil, nil)
	if err != nil {
		logger.Fatal("failed to wire pipeline", zap.Error(err))
	}

	logger.Warn("no chat gateway wired -- the reasoning pipeline is inert until a platform adapter is plugged into NewContainer")
	logger.Info("pipeline wired, waiting for shutdown signal")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := container.Close(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("urmombot stopped")
}

// runHealth wires the container and probes every external dependency: the
// database, the distributed cache, and each provider backend (one cheap
// authenticated request per backend). Exits non-zero when anything fails.
func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to an optional YAML config overlay")
	timeout := fs.Duration("timeout", 30*time.Second, "Overall probe timeout")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	container, err := NewContainer(cfg, logger, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to wire pipeline: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results := container.HealthCheck(ctx)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := false
	for _, name := range names {
		if err := results[name]; err != nil {
			failed = true
			fmt.Printf("%-14s FAIL  %v\n", name, err)
		} else {
			fmt.Printf("%-14s ok\n", name)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", zap.Error(err))
	}

	if failed {
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("urmombot %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`urmombot - chat-bot reasoning pipeline

Usage:
  urmombot <command> [options]

Commands:
  serve     Wire the pipeline and block until signaled
  migrate   Database migration commands (up, down, status)
  health    Probe the database, cache, and every provider backend
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to an optional YAML config overlay

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Roll back the last migration
  migrate status    Show current migration status`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core, zap.AddCaller())
}
