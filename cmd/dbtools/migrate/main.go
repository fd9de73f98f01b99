// cmd/dbtools/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/config"
)

func main() {
	var (
		configPath     = flag.String("config", "config/app.yaml", "Path to the YAML configuration file")
		migrationsRoot = flag.String("migrations", "internal/db/migrations", "Directory holding one migrations folder per driver")
		command        = flag.String("command", "", "Command to run (up, down, version, force)")
		forceVersion   = flag.Int("version", -1, "Version for the force command")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	databaseURL, err := migrateDatabaseURL(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Unsupported database configuration")
	}

	migrationsDir, err := filepath.Abs(filepath.Join(*migrationsRoot, cfg.Database.Driver))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid migrations path")
	}
	if _, err := os.Stat(migrationsDir); err != nil {
		log.Fatal().Err(err).Str("dir", migrationsDir).Msg("Migrations directory not found")
	}

	m, err := migrate.New("file://"+migrationsDir, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}
	defer m.Close()

	logger := log.With().Str("driver", cfg.Database.Driver).Str("command", *command).Logger()
	switch *command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migration up failed")
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migration down failed")
		}
	case "force":
		if *forceVersion < 0 {
			logger.Fatal().Msg("force requires -version")
		}
		if err := m.Force(*forceVersion); err != nil {
			logger.Fatal().Err(err).Msg("Migration force failed")
		}
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal().Err(err).Msg("Get version failed")
		}
		fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)
		return
	default:
		logger.Fatal().Msg("Unknown command")
	}
	logger.Info().Msg("Migration command completed")
}

// migrateDatabaseURL maps the application database settings to a
// golang-migrate database URL.
func migrateDatabaseURL(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "sqlite":
		abs, err := filepath.Abs(cfg.Filename)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
		return "sqlite3://" + abs, nil
	case "postgres":
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(cfg.URL, prefix) {
				return "pgx5://" + strings.TrimPrefix(cfg.URL, prefix), nil
			}
		}
		return "", fmt.Errorf("postgres URL must start with postgres://")
	default:
		return "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
