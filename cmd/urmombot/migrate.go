package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gruzilkin/urmom-bot-sub000/config"
	"github.com/gruzilkin/urmom-bot-sub000/internal/migration"
)

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to an optional YAML config overlay")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: urmombot migrate <up|down|status>")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	migrator, err := migration.NewMigratorFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)

	switch fs.Arg(0) {
	case "up":
		err = cli.RunUp()
	case "down":
		err = cli.RunDown()
	case "status":
		err = cli.RunStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", fs.Arg(0))
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
