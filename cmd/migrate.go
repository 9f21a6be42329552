package cmd

import (
	"fmt"
	"log/slog"

	"github.com/aldenhart/ragchat/db"
	"github.com/aldenhart/ragchat/internal/config"
)

// runMigrate applies pending database migrations and exits. The serve
// command migrates on startup too; this exists for deploy pipelines
// that migrate before rolling the service.
func runMigrate(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied", "database", cfg.PostgresDBName)
	return nil
}
