package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/api"
	"github.com/clone-sequence-server/internal/app"
	"github.com/clone-sequence-server/internal/config"
	"github.com/clone-sequence-server/internal/logging"
)

func main() {
	// Load configuration
	var (
		configManager *config.Manager
		err           error
	)
	if path := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); path != "" {
		configManager, err = config.NewManagerFromFile(path)
	} else {
		configManager, err = config.NewManager()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release resources")
		}
	}()

	server := api.NewServer(configManager, api.Dependencies{
		Search:      components.Search,
		Submissions: components.Submissions,
		Journal:     components.Journal,
		Health:      components.Health,
		Version:     app.Version,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting clone sequence server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}

	logger.Info("Server stopped")
}
