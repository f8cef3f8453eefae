package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/coalops/minesafe/api"
	dbfs "github.com/coalops/minesafe/db"
	"github.com/coalops/minesafe/internal/advice"
	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/internal/db"
	"github.com/coalops/minesafe/internal/jobs"
	"github.com/coalops/minesafe/internal/repository/sqlite"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	log.Printf("Starting minesafe server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}

	// Apply migrations and seed data
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// Optional LLM coaching advisor
	var (
		advisor      *advice.Advisor
		ollamaClient *ollama.Client
	)
	if cfg.Advisor.Enabled {
		ollama.SetLogger(logger)
		ollamaClient, err = ollama.NewClient(cfg.Ollama, nil)
		if err != nil {
			log.Fatalf("Failed to create ollama client: %v", err)
		}
		advisor = advice.New(ollamaClient, cfg.Advisor, logger)
	}

	handler, err := api.SetupRoutes(ctx, cfg, version, buildTime, database, advisor)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Background jobs: the daily behavior sweep
	repo := sqlite.New(database, logger)
	issuer := scoring.NewIssuer(repo)
	sweeper := jobs.NewSweeper(repo, repo, issuer, logger)
	jobRepo := jobs.NewRepository(database)
	pool := jobs.NewWorkerPool(jobRepo, map[string]jobs.Handler{
		jobs.SweepType: sweeper.Handle,
	}, logger, cfg.Workers)
	sweeper.Bind(pool)

	jobCtx, cancelJobs := context.WithCancel(ctx)
	pool.Start(jobCtx)

	// schedule the first sweep unless a restart left one queued
	pending, err := jobRepo.HasPending(ctx, jobs.SweepType)
	if err != nil {
		log.Fatalf("Failed to check pending jobs: %v", err)
	}
	if !pending {
		next := time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + 5*time.Minute)
		if _, err := pool.EnqueueAt(ctx, jobs.SweepType, nil, 100, 3, next); err != nil {
			log.Fatalf("Failed to schedule sweep: %v", err)
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop background workers
	cancelJobs()
	pool.Stop()

	if ollamaClient != nil {
		ollamaClient.Close()
	}

	// Close database connection
	if err := database.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
