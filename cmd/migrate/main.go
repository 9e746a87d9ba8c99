package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"archie-core-shopify-sync/internal/infrastructure/config"
	"archie-core-shopify-sync/internal/infrastructure/logging"
	"archie-core-shopify-sync/internal/infrastructure/migration"

	"github.com/joho/godotenv"
)

func main() {
	var migrationsPath string
	flag.StringVar(&migrationsPath, "path", migration.DefaultPath, "Path to migrations directory")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	envErr := godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, "console", os.Stdout)
	if envErr != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL environment variable is required")
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to resolve migrations path")
	}
	logger.Info().Str("command", command).Str("path", absPath).Msg("Migration CLI started")

	m, err := migration.Open(cfg.DatabaseURL, absPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migrator")
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "step":
		if len(args) < 2 {
			logger.Fatal().Msg("Step count required. Usage: migrate step <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			logger.Fatal().Str("value", args[1]).Msg("Invalid step count")
		}
		err = m.Steps(n)
	case "force":
		if len(args) < 2 {
			logger.Fatal().Msg("Version required. Usage: migrate force <version>")
		}
		version, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			logger.Fatal().Str("value", args[1]).Msg("Invalid version number")
		}
		err = m.Force(version)
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			logger.Fatal().Err(verErr).Msg("Failed to get version")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-path dir] <command> [args]

Commands:
  up              apply all pending migrations
  down            roll back all migrations
  step <n>        apply n migrations, negative to roll back
  force <version> set the version without running migrations
  version         print the applied version`)
}
