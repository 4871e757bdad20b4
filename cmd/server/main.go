// Package main is the entry point for the recipe API server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (env vars, optionally from a .env file)
//  2. Create the logger
//  3. Start the application
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the floor; Info by default.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set. Generate one with: openssl rand -hex 32")
		os.Exit(1)
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set; GitHub login disabled")
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
