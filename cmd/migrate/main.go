package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/liamcoop/cvrisk/internal/config"
	"github.com/liamcoop/cvrisk/internal/logger"
)

const usage = "up, down, steps <n>, version, force <version>"

func main() {
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", "", "Database URL (defaults to DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: "+usage)
	flag.Parse()

	if databaseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("Failed to load configuration", "error", err)
		}
		databaseURL = cfg.DatabaseURL
	}
	if databaseURL == "" {
		logger.Fatal("Database URL is required. Use -database flag or DATABASE_URL environment variable")
	}

	logger.Info("Opening assessment migrations", "path", migrationsPath)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("Failed to create migration instance", "error", err)
	}
	defer m.Close()

	if err := run(m, command, flag.Args()); err != nil {
		logger.Fatal("Migration failed", "command", command, "error", err)
	}
}

func run(m *migrate.Migrate, command string, args []string) error {
	switch command {
	case "up":
		return report(m.Up(), "Assessment schema is up to date")

	case "down":
		return report(m.Down(), "Assessment schema rolled back")

	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return report(m.Steps(n), "Applied migration steps")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("No migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("Current version", "version", version, "dirty", dirty)
		return nil

	case "force":
		version, err := intArg(args)
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		logger.Info("Forced version", "version", version)
		return nil

	default:
		return fmt.Errorf("unknown command %q (use: %s)", command, usage)
	}
}

func report(err error, done string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to run")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(done)
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, errors.New("command requires a numeric argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}
