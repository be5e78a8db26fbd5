// Package main is the entry point for the Sankalp API server.
//
// The main package stays minimal: it reads configuration, builds the logger
// and hands both to internal/server, which owns everything else.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sankalp/sankalp/internal/config"
	"github.com/sankalp/sankalp/internal/logging"
	"github.com/sankalp/sankalp/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// .env is optional; real environment variables win over it.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		logCloser.Close()
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		logCloser.Close()
		os.Exit(1)
	}
}
