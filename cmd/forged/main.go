// Forged is a project generation service with an HTTP API.
//
// It stores project records in an embedded vector store, generates text
// content for them through a configurable provider, and synthesizes audio
// from the generated content.
//
// Configuration is loaded from an optional YAML file and FORGED_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults (in-memory store, fallback providers)
//	forged
//
//	# Configure via environment
//	FORGED_SERVER_PORT=9090 FORGED_STORE_PATH=/var/lib/forged/projects.db forged
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/config"
	"github.com/fyrsmithlabs/forged/internal/embeddings"
	"github.com/fyrsmithlabs/forged/internal/generate"
	"github.com/fyrsmithlabs/forged/internal/http"
	"github.com/fyrsmithlabs/forged/internal/logging"
	"github.com/fyrsmithlabs/forged/internal/orchestrator"
	"github.com/fyrsmithlabs/forged/internal/speech"
	"github.com/fyrsmithlabs/forged/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("forged\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the forged server and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Build the logger
//  3. Open the vector store and run its startup self-check
//  4. Construct the embedding, generation and speech providers
//  5. Wire the orchestrator and HTTP server
//  6. Serve until cancellation, then shut down gracefully
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting forged",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store_path", cfg.Store.Path),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	projectStore, err := store.NewProjectStore(ctx, store.Config{
		Path:     cfg.Store.Path,
		Compress: cfg.Store.Compress,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(embeddings.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey.Value(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	generator, err := generate.NewProvider(generate.Config{
		BaseURL:       cfg.Generation.BaseURL,
		Model:         cfg.Generation.Model,
		APIKey:        cfg.Generation.APIKey.Value(),
		Strict:        cfg.Generation.Strict,
		FallbackDelay: cfg.Generation.FallbackDelay.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create generation provider: %w", err)
	}

	speaker, err := speech.NewProvider(speech.Config{
		BaseURL:   cfg.Speech.BaseURL,
		Model:     cfg.Speech.Model,
		Voice:     cfg.Speech.Voice,
		APIKey:    cfg.Speech.APIKey.Value(),
		AssetsDir: cfg.Server.AssetsDir,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create speech provider: %w", err)
	}

	logger.Info("Providers initialized",
		zap.Bool("live_embeddings", cfg.Embedding.APIKey.IsSet()),
		zap.Bool("live_generation", cfg.Generation.APIKey.IsSet()),
		zap.Bool("live_speech", cfg.Speech.APIKey.IsSet()))

	svc, err := orchestrator.NewService(projectStore, embedder, generator, speaker, logger)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	srv, err := http.NewServer(svc, logger, http.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		AssetsDir: cfg.Server.AssetsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Drain the start error after shutdown; ErrServerClosed is expected.
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
	case <-time.After(time.Second):
	}

	return nil
}
