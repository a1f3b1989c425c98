package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/arcadewallet/service/config"
	"github.com/brojonat/arcadewallet/service/game"
	"github.com/brojonat/arcadewallet/service/metrics"
	"github.com/brojonat/arcadewallet/service/nats"
	"github.com/brojonat/arcadewallet/service/server"
	"github.com/brojonat/arcadewallet/service/solana"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"confirmation_level", cfg.ConfirmationLevel,
	)

	m := metrics.NewMetrics(nil)

	// For premium RPC endpoints, include the API key in the URL
	rpcClient := solana.NewRPCClient(cfg.SolanaRPCURL, cfg.RPCRateLimit)
	logger.Info("initialized solana RPC client", "rate_limit", cfg.RPCRateLimit)

	// Event publishing is optional; the engine treats a nil publisher as disabled.
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		jsPublisher, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher
		logger.Info("connected to NATS", "stream", nats.StreamName)
	} else {
		logger.Warn("NATS_URL not set, transaction events will not be published")
	}

	engine, err := game.NewFromConfig(cfg, rpcClient, publisher, m, logger)
	if err != nil {
		logger.Error("failed to create game engine", "error", err)
		os.Exit(1)
	}

	httpServer := server.New(cfg.ServerAddr, engine, cfg.ConfirmationTimeout, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Let in-flight confirmations finish before giving up.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ConfirmationTimeout+5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
