// Command migrate applies pending schema migrations and exits.
package main

import (
	"context"

	"github.com/pulsewire/pulse/internal/config"
	"github.com/pulsewire/pulse/internal/platform/database"
	"github.com/pulsewire/pulse/internal/platform/migrations"
	"github.com/pulsewire/pulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output, FilePrefix: "migrate"})

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(db.DB); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	log.Infof("migrations applied")
}
