package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/as-progression-tracker/internal/app"
	"github.com/as-progression-tracker/internal/config"
	"github.com/as-progression-tracker/internal/logging"
	"github.com/as-progression-tracker/internal/mcp"
)

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	configManager, err := config.NewManagerFromFile(os.Getenv("AS_TRACKER_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.NewLogger(logging.ForStdio(cfg.Logging))
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

	server := mcp.NewServer(configManager, application.Tracker, application.Classifiers, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}

	logger.Info("MCP server stopped")
}
