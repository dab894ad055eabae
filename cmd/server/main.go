package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/as-progression-tracker/internal/api"
	"github.com/as-progression-tracker/internal/app"
	"github.com/as-progression-tracker/internal/config"
	"github.com/as-progression-tracker/internal/logging"
)

func main() {
	configManager, err := config.NewManagerFromFile(os.Getenv("AS_TRACKER_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	server := api.NewServer(configManager, application.Tracker, application.Sessions, application.Classifiers, logger)

	logger.WithField("port", cfg.Server.Port).Info("Starting AS progression tracker")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
