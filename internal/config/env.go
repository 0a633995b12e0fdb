// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration. Field names map
// directly to environment variables; nested structs use an underscore
// delimiter (e.g. PLACES_REFRESH_DAYS).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.gigradar
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/gigradar.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// Scrape configures the scraper orchestrator.
	Scrape ScrapeEnv `envconfig:"SCRAPE"`

	// Integrator configures event integration batching.
	Integrator IntegratorEnv `envconfig:"INTEGRATOR"`

	// Places configures venue enrichment.
	Places PlacesEnv `envconfig:"PLACES"`

	// Embedding configures the embedding provider and worker.
	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	// Resilience configures retry and circuit-breaker policies.
	Resilience ResilienceEnv `envconfig:"RESILIENCE"`
}

// ScrapeEnv holds environment configuration for scraping.
type ScrapeEnv struct {
	// CapPerSource bounds records fetched per source.
	// Env: SCRAPE_CAP_PER_SOURCE (default: 3000)
	CapPerSource int `envconfig:"CAP_PER_SOURCE" default:"3000"`

	// Parallelism is the number of adapters run concurrently.
	// Env: SCRAPE_PARALLELISM (default: 4)
	Parallelism int `envconfig:"PARALLELISM" default:"4"`
}

// IntegratorEnv holds environment configuration for the integrator.
type IntegratorEnv struct {
	// Chunk is the per-transaction document count.
	// Env: INTEGRATOR_CHUNK (default: 50)
	Chunk int `envconfig:"CHUNK" default:"50"`

	// Batch is the per-tick document count.
	// Env: INTEGRATOR_BATCH (default: 1000)
	Batch int `envconfig:"BATCH" default:"1000"`

	// TickSeconds is the deferred batch interval in seconds.
	// Env: INTEGRATOR_TICK_SECONDS (default: 10)
	TickSeconds float64 `envconfig:"TICK_SECONDS" default:"10"`
}

// PlacesEnv holds environment configuration for the places provider.
type PlacesEnv struct {
	// APIKey authenticates against the places provider.
	// Env: PLACES_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// EnrichEnabled toggles venue enrichment.
	// Env: PLACES_ENRICH_ENABLED (default: false)
	EnrichEnabled bool `envconfig:"ENRICH_ENABLED" default:"false"`

	// RefreshDays is the venue staleness horizon in days.
	// Env: PLACES_REFRESH_DAYS (default: 30)
	RefreshDays int `envconfig:"REFRESH_DAYS" default:"30"`

	// RateDelayMillis is the minimum interval between requests.
	// Env: PLACES_RATE_DELAY_MILLIS (default: 200)
	RateDelayMillis int `envconfig:"RATE_DELAY_MILLIS" default:"200"`

	// RefreshHour is the local hour of the daily refresh sweep.
	// Env: PLACES_REFRESH_HOUR (default: 3)
	RefreshHour int `envconfig:"REFRESH_HOUR" default:"3"`
}

// EmbeddingEnv holds environment configuration for embeddings.
type EmbeddingEnv struct {
	// APIKey authenticates against the embedding provider.
	// Env: EMBEDDING_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// BaseURL overrides the embedding endpoint base URL.
	// Env: EMBEDDING_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the embedding model identifier.
	// Env: EMBEDDING_MODEL (default: text-embedding-3-small)
	Model string `envconfig:"MODEL" default:"text-embedding-3-small"`

	// Dimensions is the vector dimension; all stored vectors must agree.
	// Env: EMBEDDING_DIMENSIONS (default: 1536)
	Dimensions int `envconfig:"DIMENSIONS" default:"1536"`

	// SubBatch is the number of texts per provider call.
	// Env: EMBEDDING_SUBBATCH (default: 20)
	SubBatch int `envconfig:"SUBBATCH" default:"20"`

	// SleepSeconds is the pause between provider calls in seconds.
	// Env: EMBEDDING_SLEEP_SECONDS (default: 1)
	SleepSeconds float64 `envconfig:"SLEEP_SECONDS" default:"1"`

	// SweepLimit bounds events selected per worker sweep.
	// Env: EMBEDDING_SWEEP_LIMIT (default: 1000)
	SweepLimit int `envconfig:"SWEEP_LIMIT" default:"1000"`
}

// ResilienceEnv holds environment configuration for resilience policies.
type ResilienceEnv struct {
	// RetryMax is the total attempt budget for transient failures, the
	// first call included.
	// Env: RESILIENCE_RETRY_MAX (default: 3)
	RetryMax int `envconfig:"RETRY_MAX" default:"3"`

	// RetryWaitMillis is the initial retry backoff in milliseconds.
	// Env: RESILIENCE_RETRY_WAIT_MILLIS (default: 300)
	RetryWaitMillis int `envconfig:"RETRY_WAIT_MILLIS" default:"300"`

	// CBFailureRate is the failure percentage that trips the breaker.
	// Env: RESILIENCE_CB_FAILURE_RATE (default: 50)
	CBFailureRate int `envconfig:"CB_FAILURE_RATE" default:"50"`

	// CBWindow is the sliding call window size.
	// Env: RESILIENCE_CB_WINDOW (default: 100)
	CBWindow int `envconfig:"CB_WINDOW" default:"100"`

	// CBMinCalls is the minimum calls before the breaker can trip.
	// Env: RESILIENCE_CB_MIN_CALLS (default: 10)
	CBMinCalls int `envconfig:"CB_MIN_CALLS" default:"10"`

	// CBOpenWaitSeconds is how long the breaker stays open in seconds.
	// Env: RESILIENCE_CB_OPEN_WAIT_SECONDS (default: 30)
	CBOpenWaitSeconds float64 `envconfig:"CB_OPEN_WAIT_SECONDS" default:"30"`

	// CBHalfOpen is the number of probe calls allowed half-open.
	// Env: RESILIENCE_CB_HALF_OPEN (default: 10)
	CBHalfOpen int `envconfig:"CB_HALF_OPEN" default:"10"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "GIGRADAR" requires GIGRADAR_DB_URL instead of DB_URL.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()
	var opts []AppConfigOption

	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	opts = append(opts,
		WithScrapeConfig(e.Scrape.ToScrapeConfig()),
		WithIntegratorConfig(e.Integrator.ToIntegratorConfig()),
		WithPlacesConfig(e.Places.ToPlacesConfig()),
		WithEmbeddingConfig(e.Embedding.ToEmbeddingConfig()),
		WithResilienceConfig(e.Resilience.ToResilienceConfig()),
	)

	return cfg.Apply(opts...)
}

// ToScrapeConfig converts ScrapeEnv to ScrapeConfig.
func (s ScrapeEnv) ToScrapeConfig() ScrapeConfig {
	return NewScrapeConfig().
		WithCapPerSource(s.CapPerSource).
		WithParallelism(s.Parallelism)
}

// ToIntegratorConfig converts IntegratorEnv to IntegratorConfig.
func (i IntegratorEnv) ToIntegratorConfig() IntegratorConfig {
	return NewIntegratorConfig().
		WithChunkSize(i.Chunk).
		WithBatchSize(i.Batch).
		WithTick(time.Duration(i.TickSeconds * float64(time.Second)))
}

// ToPlacesConfig converts PlacesEnv to PlacesConfig.
func (p PlacesEnv) ToPlacesConfig() PlacesConfig {
	return NewPlacesConfig().
		WithAPIKey(p.APIKey).
		WithEnabled(p.EnrichEnabled).
		WithRefreshDays(p.RefreshDays).
		WithRateDelay(time.Duration(p.RateDelayMillis) * time.Millisecond).
		WithRefreshHour(p.RefreshHour)
}

// ToEmbeddingConfig converts EmbeddingEnv to EmbeddingConfig.
func (e EmbeddingEnv) ToEmbeddingConfig() EmbeddingConfig {
	return NewEmbeddingConfig().
		WithAPIKey(e.APIKey).
		WithBaseURL(e.BaseURL).
		WithModel(e.Model).
		WithDimensions(e.Dimensions).
		WithSubBatch(e.SubBatch).
		WithSleep(time.Duration(e.SleepSeconds * float64(time.Second))).
		WithSweepLimit(e.SweepLimit)
}

// ToResilienceConfig converts ResilienceEnv to ResilienceConfig.
func (r ResilienceEnv) ToResilienceConfig() ResilienceConfig {
	return NewResilienceConfig().
		WithRetryMax(r.RetryMax).
		WithRetryWait(time.Duration(r.RetryWaitMillis) * time.Millisecond).
		WithBreakerFailureRate(r.CBFailureRate).
		WithBreakerWindow(r.CBWindow).
		WithBreakerMinCalls(r.CBMinCalls).
		WithBreakerOpenWait(time.Duration(r.CBOpenWaitSeconds * float64(time.Second))).
		WithBreakerHalfOpen(r.CBHalfOpen)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
