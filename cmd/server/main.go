package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rishabhpillay/transcript-server/internal/ai"
	"github.com/rishabhpillay/transcript-server/internal/config"
	"github.com/rishabhpillay/transcript-server/internal/ingest"
	"github.com/rishabhpillay/transcript-server/internal/metrics"
	"github.com/rishabhpillay/transcript-server/internal/retry"
	"github.com/rishabhpillay/transcript-server/internal/server"
	"github.com/rishabhpillay/transcript-server/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "transcript-server"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env if present so ${VAR} references in the config resolve
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.Bool("diarization_enabled", cfg.Diarization.Enabled),
		slog.Bool("text_merge_enabled", cfg.TextMerge.Enabled),
		slog.Int("retry_attempts", cfg.Retry.Attempts),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Initialize session storage
	var store session.Store
	switch cfg.Storage.Backend {
	case "badger":
		store, err = session.NewBadgerStore(cfg.Storage.DataDir)
		if err != nil {
			logger.Error("Failed to open badger store", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		store = session.NewMemoryStore()
	}
	logger.Info("Session store initialized", slog.String("backend", cfg.Storage.Backend))

	audioStore, err := session.NewAudioStore(cfg.Storage.AudioDir)
	if err != nil {
		logger.Error("Failed to create audio store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize collaborator clients
	transcriber, err := ai.NewTranscribeClient(ai.TranscribeConfig{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeout(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var diarizer ai.Diarizer
	if cfg.Diarization.Enabled {
		diarizer, err = ai.NewDiarizeClient(ai.DiarizeConfig{
			Endpoint: cfg.Diarization.Endpoint,
			APIKey:   cfg.Diarization.APIKey,
			Model:    cfg.Diarization.Model,
			Language: cfg.Diarization.Language,
			Timeout:  cfg.Diarization.GetTimeout(),
		})
		if err != nil {
			logger.Error("Failed to create diarization client", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var summaryMerger ai.SummaryMerger
	var actionMerger ai.ActionMerger
	if cfg.TextMerge.Enabled {
		mergeClient, err := ai.NewMergeClient(ai.MergeConfig{
			Endpoint: cfg.TextMerge.Endpoint,
			APIKey:   cfg.TextMerge.APIKey,
			Model:    cfg.TextMerge.Model,
			Timeout:  cfg.TextMerge.GetTimeout(),
		})
		if err != nil {
			logger.Error("Failed to create text merge client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		summaryMerger = mergeClient
		actionMerger = mergeClient
	}

	// Initialize the consolidation orchestrator
	orchestrator := ingest.NewOrchestrator(
		store, audioStore, transcriber, diarizer, summaryMerger, actionMerger,
		ingest.Config{
			RetryPolicy: retry.Policy{
				Attempts:    cfg.Retry.Attempts,
				BackoffBase: cfg.Retry.GetBackoffBase(),
			},
			ConflictRetries: cfg.Ingest.ConflictRetries,
		},
		logger, appMetrics,
	)
	logger.Info("Chunk orchestrator initialized")

	// Initialize and start the HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, orchestrator, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	if err := store.Close(); err != nil {
		logger.Error("Error closing session store", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
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

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
