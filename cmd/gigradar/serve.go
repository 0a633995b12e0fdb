package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gigradar/gigradar/infrastructure/api"
	"github.com/gigradar/gigradar/internal/config"
	"github.com/gigradar/gigradar/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server with the background pipeline workers.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                        Server host to bind to (default: 0.0.0.0)
  PORT                        Server port to listen on (default: 8080)
  DATA_DIR                    Data directory (default: ~/.gigradar)
  DB_URL                      Database URL (default: sqlite:///{data_dir}/gigradar.db)
  LOG_LEVEL                   Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                  Log format: pretty, json (default: pretty)

  SCRAPE_CAP_PER_SOURCE       Records fetched per source (default: 3000)
  SCRAPE_PARALLELISM          Concurrent source adapters (default: 4)

  INTEGRATOR_CHUNK            Documents per transaction (default: 50)
  INTEGRATOR_BATCH            Documents per deferred tick (default: 1000)
  INTEGRATOR_TICK_SECONDS     Deferred tick interval (default: 10)

  PLACES_API_KEY              Places provider API key
  PLACES_ENRICH_ENABLED       Enable venue enrichment (default: false)
  PLACES_REFRESH_DAYS         Venue staleness horizon (default: 30)
  PLACES_RATE_DELAY_MILLIS    Minimum interval between requests (default: 200)
  PLACES_REFRESH_HOUR         Daily refresh sweep hour (default: 3)

  EMBEDDING_API_KEY           Embedding provider API key
  EMBEDDING_MODEL             Embedding model (default: text-embedding-3-small)
  EMBEDDING_DIMENSIONS        Vector dimension (default: 1536)
  EMBEDDING_SUBBATCH          Texts per provider call (default: 20)
  EMBEDDING_SLEEP_SECONDS     Pause between provider calls (default: 1)

  RESILIENCE_RETRY_MAX        Total attempts for transient failures (default: 3)
  RESILIENCE_CB_FAILURE_RATE  Breaker trip percentage (default: 50)
  RESILIENCE_CB_OPEN_WAIT_SECONDS  Breaker open duration (default: 30)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.Configure(cfg).Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting gigradar", attrs...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// Background workers: deferred integrator ticks, embedding sweeps,
	// and the daily venue refresh.
	a.integrator.Start(ctx)
	defer a.integrator.Stop()
	a.worker.Start(ctx)
	if a.enricher != nil {
		a.enricher.StartSweep(ctx)
	}

	server := api.NewServer(cfg.Addr(), logger)

	var clearPlaceCache func()
	if a.enricher != nil {
		clearPlaceCache = a.enricher.ClearCache
	}
	router := api.NewEventsRouter(a.events, a.venues, a.similarity, a.status, a.integrator, clearPlaceCache, logger)
	router.Mount(server.Router())

	server.Router().Get("/health", healthHandler)
	server.Router().Get("/healthz", healthHandler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	return server.Start()
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
