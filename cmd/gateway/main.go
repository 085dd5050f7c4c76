package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentbridge/gateway/internal/config"
	"github.com/agentbridge/gateway/internal/domain"
	"github.com/agentbridge/gateway/internal/gateway"
	"github.com/agentbridge/gateway/internal/server"
	"github.com/agentbridge/gateway/internal/telemetry"
	"github.com/agentbridge/gateway/internal/tokens"
	"github.com/agentbridge/gateway/internal/upstream"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("agent-bridge", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL,
		upstream.WithHealthTimeout(cfg.Upstream.HealthTimeout),
	)

	handler := gateway.NewHandler(client,
		domain.AgentIdentity{ID: cfg.Agent.ID, Name: cfg.Agent.Name},
		tokens.NewEstimator(),
	)

	srv := server.New(cfg.Server.Port, logger)
	srv.Router.Mount("/api", handler.Routes())

	go func() {
		logger.Info("gateway ready", slog.String("backend", cfg.Upstream.BaseURL))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
