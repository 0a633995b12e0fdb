// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8080
	DefaultLogLevel            = "INFO"
	DefaultScrapeCapPerSource  = 3000
	DefaultScrapeParallelism   = 4
	DefaultIntegratorChunk     = 50
	DefaultIntegratorBatch     = 1000
	DefaultIntegratorTick      = 10 * time.Second
	DefaultPlacesRefreshDays   = 30
	DefaultPlacesRateDelay     = 200 * time.Millisecond
	DefaultPlacesRefreshHour   = 3
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536
	DefaultEmbeddingSubBatch   = 20
	DefaultEmbeddingSleep      = 1 * time.Second
	DefaultEmbeddingSweepLimit = 1000
	DefaultRetryMax            = 3
	DefaultRetryWait           = 300 * time.Millisecond
	DefaultBreakerFailureRate  = 50
	DefaultBreakerWindow       = 100
	DefaultBreakerMinCalls     = 10
	DefaultBreakerOpenWait     = 30 * time.Second
	DefaultBreakerHalfOpen     = 10
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ScrapeConfig configures the scraper orchestrator.
type ScrapeConfig struct {
	capPerSource int
	parallelism  int
}

// NewScrapeConfig creates a ScrapeConfig with defaults.
func NewScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		capPerSource: DefaultScrapeCapPerSource,
		parallelism:  DefaultScrapeParallelism,
	}
}

// CapPerSource returns the maximum records fetched per source.
func (s ScrapeConfig) CapPerSource() int { return s.capPerSource }

// Parallelism returns the number of adapters run concurrently.
func (s ScrapeConfig) Parallelism() int { return s.parallelism }

// WithCapPerSource returns a new config with the specified cap.
func (s ScrapeConfig) WithCapPerSource(n int) ScrapeConfig {
	if n > 0 {
		s.capPerSource = n
	}
	return s
}

// WithParallelism returns a new config with the specified parallelism.
func (s ScrapeConfig) WithParallelism(n int) ScrapeConfig {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// IntegratorConfig configures the event integrator.
type IntegratorConfig struct {
	chunkSize int
	batchSize int
	tick      time.Duration
}

// NewIntegratorConfig creates an IntegratorConfig with defaults.
func NewIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		chunkSize: DefaultIntegratorChunk,
		batchSize: DefaultIntegratorBatch,
		tick:      DefaultIntegratorTick,
	}
}

// ChunkSize returns the number of documents per transaction.
func (i IntegratorConfig) ChunkSize() int { return i.chunkSize }

// BatchSize returns the number of documents processed per tick.
func (i IntegratorConfig) BatchSize() int { return i.batchSize }

// Tick returns the interval between deferred batch runs.
func (i IntegratorConfig) Tick() time.Duration { return i.tick }

// WithChunkSize returns a new config with the specified chunk size.
func (i IntegratorConfig) WithChunkSize(n int) IntegratorConfig {
	if n > 0 {
		i.chunkSize = n
	}
	return i
}

// WithBatchSize returns a new config with the specified batch size.
func (i IntegratorConfig) WithBatchSize(n int) IntegratorConfig {
	if n > 0 {
		i.batchSize = n
	}
	return i
}

// WithTick returns a new config with the specified tick interval.
func (i IntegratorConfig) WithTick(d time.Duration) IntegratorConfig {
	if d > 0 {
		i.tick = d
	}
	return i
}

// PlacesConfig configures venue enrichment against the places provider.
type PlacesConfig struct {
	apiKey      string
	enabled     bool
	refreshDays int
	rateDelay   time.Duration
	refreshHour int
}

// NewPlacesConfig creates a PlacesConfig with defaults. Enrichment is
// disabled until an API key is supplied and it is explicitly enabled.
func NewPlacesConfig() PlacesConfig {
	return PlacesConfig{
		refreshDays: DefaultPlacesRefreshDays,
		rateDelay:   DefaultPlacesRateDelay,
		refreshHour: DefaultPlacesRefreshHour,
	}
}

// APIKey returns the places provider API key.
func (p PlacesConfig) APIKey() string { return p.apiKey }

// Enabled returns whether venue enrichment is enabled.
func (p PlacesConfig) Enabled() bool { return p.enabled }

// RefreshDays returns the staleness horizon in days.
func (p PlacesConfig) RefreshDays() int { return p.refreshDays }

// RefreshHorizon returns the staleness horizon as a duration.
func (p PlacesConfig) RefreshHorizon() time.Duration {
	return time.Duration(p.refreshDays) * 24 * time.Hour
}

// RateDelay returns the minimum interval between outbound requests.
func (p PlacesConfig) RateDelay() time.Duration { return p.rateDelay }

// RefreshHour returns the local hour of the daily refresh sweep.
func (p PlacesConfig) RefreshHour() int { return p.refreshHour }

// WithAPIKey returns a new config with the specified API key.
func (p PlacesConfig) WithAPIKey(key string) PlacesConfig {
	p.apiKey = key
	return p
}

// WithEnabled returns a new config with the specified enabled state.
func (p PlacesConfig) WithEnabled(enabled bool) PlacesConfig {
	p.enabled = enabled
	return p
}

// WithRefreshDays returns a new config with the specified horizon.
func (p PlacesConfig) WithRefreshDays(days int) PlacesConfig {
	if days > 0 {
		p.refreshDays = days
	}
	return p
}

// WithRateDelay returns a new config with the specified minimum interval.
func (p PlacesConfig) WithRateDelay(d time.Duration) PlacesConfig {
	if d > 0 {
		p.rateDelay = d
	}
	return p
}

// WithRefreshHour returns a new config with the specified sweep hour.
func (p PlacesConfig) WithRefreshHour(hour int) PlacesConfig {
	if hour >= 0 && hour < 24 {
		p.refreshHour = hour
	}
	return p
}

// EmbeddingConfig configures the embedding provider and worker.
type EmbeddingConfig struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	subBatch   int
	sleep      time.Duration
	sweepLimit int
}

// NewEmbeddingConfig creates an EmbeddingConfig with defaults.
func NewEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		model:      DefaultEmbeddingModel,
		dimensions: DefaultEmbeddingDimensions,
		subBatch:   DefaultEmbeddingSubBatch,
		sleep:      DefaultEmbeddingSleep,
		sweepLimit: DefaultEmbeddingSweepLimit,
	}
}

// APIKey returns the embedding provider API key.
func (e EmbeddingConfig) APIKey() string { return e.apiKey }

// BaseURL returns the embedding endpoint base URL, empty for the default.
func (e EmbeddingConfig) BaseURL() string { return e.baseURL }

// Model returns the embedding model identifier.
func (e EmbeddingConfig) Model() string { return e.model }

// Dimensions returns the configured vector dimension.
func (e EmbeddingConfig) Dimensions() int { return e.dimensions }

// SubBatch returns the number of texts per provider call.
func (e EmbeddingConfig) SubBatch() int { return e.subBatch }

// Sleep returns the pause between provider calls.
func (e EmbeddingConfig) Sleep() time.Duration { return e.sleep }

// SweepLimit returns the maximum events selected per worker sweep.
func (e EmbeddingConfig) SweepLimit() int { return e.sweepLimit }

// IsConfigured returns true if the provider can be called.
func (e EmbeddingConfig) IsConfigured() bool { return e.apiKey != "" && e.model != "" }

// WithAPIKey returns a new config with the specified API key.
func (e EmbeddingConfig) WithAPIKey(key string) EmbeddingConfig {
	e.apiKey = key
	return e
}

// WithBaseURL returns a new config with the specified base URL.
func (e EmbeddingConfig) WithBaseURL(url string) EmbeddingConfig {
	e.baseURL = url
	return e
}

// WithModel returns a new config with the specified model.
func (e EmbeddingConfig) WithModel(model string) EmbeddingConfig {
	if model != "" {
		e.model = model
	}
	return e
}

// WithDimensions returns a new config with the specified dimension.
func (e EmbeddingConfig) WithDimensions(d int) EmbeddingConfig {
	if d > 0 {
		e.dimensions = d
	}
	return e
}

// WithSubBatch returns a new config with the specified sub-batch size.
func (e EmbeddingConfig) WithSubBatch(n int) EmbeddingConfig {
	if n > 0 {
		e.subBatch = n
	}
	return e
}

// WithSleep returns a new config with the specified inter-batch pause.
func (e EmbeddingConfig) WithSleep(d time.Duration) EmbeddingConfig {
	if d >= 0 {
		e.sleep = d
	}
	return e
}

// WithSweepLimit returns a new config with the specified sweep limit.
func (e EmbeddingConfig) WithSweepLimit(n int) EmbeddingConfig {
	if n > 0 {
		e.sweepLimit = n
	}
	return e
}

// ResilienceConfig configures retry and circuit-breaker policies for
// outbound provider calls.
type ResilienceConfig struct {
	retryMax           int
	retryWait          time.Duration
	breakerFailureRate int
	breakerWindow      int
	breakerMinCalls    int
	breakerOpenWait    time.Duration
	breakerHalfOpen    int
}

// NewResilienceConfig creates a ResilienceConfig with defaults.
func NewResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		retryMax:           DefaultRetryMax,
		retryWait:          DefaultRetryWait,
		breakerFailureRate: DefaultBreakerFailureRate,
		breakerWindow:      DefaultBreakerWindow,
		breakerMinCalls:    DefaultBreakerMinCalls,
		breakerOpenWait:    DefaultBreakerOpenWait,
		breakerHalfOpen:    DefaultBreakerHalfOpen,
	}
}

// RetryMax returns the maximum total attempts per operation, the first
// call included: 3 means one call plus two retries.
func (r ResilienceConfig) RetryMax() int { return r.retryMax }

// RetryWait returns the initial retry backoff.
func (r ResilienceConfig) RetryWait() time.Duration { return r.retryWait }

// BreakerFailureRate returns the failure percentage that trips the breaker.
func (r ResilienceConfig) BreakerFailureRate() int { return r.breakerFailureRate }

// BreakerWindow returns the size of the sliding call window.
func (r ResilienceConfig) BreakerWindow() int { return r.breakerWindow }

// BreakerMinCalls returns the minimum calls before the breaker can trip.
func (r ResilienceConfig) BreakerMinCalls() int { return r.breakerMinCalls }

// BreakerOpenWait returns how long the breaker stays open.
func (r ResilienceConfig) BreakerOpenWait() time.Duration { return r.breakerOpenWait }

// BreakerHalfOpen returns the number of probe calls allowed half-open.
func (r ResilienceConfig) BreakerHalfOpen() int { return r.breakerHalfOpen }

// WithRetryMax returns a new config with the specified attempt budget.
func (r ResilienceConfig) WithRetryMax(n int) ResilienceConfig {
	if n > 0 {
		r.retryMax = n
	}
	return r
}

// WithRetryWait returns a new config with the specified initial backoff.
func (r ResilienceConfig) WithRetryWait(d time.Duration) ResilienceConfig {
	if d > 0 {
		r.retryWait = d
	}
	return r
}

// WithBreakerFailureRate returns a new config with the specified trip rate.
func (r ResilienceConfig) WithBreakerFailureRate(pct int) ResilienceConfig {
	if pct > 0 && pct <= 100 {
		r.breakerFailureRate = pct
	}
	return r
}

// WithBreakerWindow returns a new config with the specified window size.
func (r ResilienceConfig) WithBreakerWindow(n int) ResilienceConfig {
	if n > 0 {
		r.breakerWindow = n
	}
	return r
}

// WithBreakerMinCalls returns a new config with the specified minimum calls.
func (r ResilienceConfig) WithBreakerMinCalls(n int) ResilienceConfig {
	if n > 0 {
		r.breakerMinCalls = n
	}
	return r
}

// WithBreakerOpenWait returns a new config with the specified open duration.
func (r ResilienceConfig) WithBreakerOpenWait(d time.Duration) ResilienceConfig {
	if d > 0 {
		r.breakerOpenWait = d
	}
	return r
}

// WithBreakerHalfOpen returns a new config with the specified probe count.
func (r ResilienceConfig) WithBreakerHalfOpen(n int) ResilienceConfig {
	if n > 0 {
		r.breakerHalfOpen = n
	}
	return r
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host       string
	port       int
	dataDir    string
	dbURL      string
	logLevel   string
	logFormat  LogFormat
	scrape     ScrapeConfig
	integrator IntegratorConfig
	places     PlacesConfig
	embedding  EmbeddingConfig
	resilience ResilienceConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gigradar"
	}
	return filepath.Join(home, ".gigradar")
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:       DefaultHost,
		port:       DefaultPort,
		dataDir:    dataDir,
		dbURL:      "sqlite:///" + filepath.Join(dataDir, "gigradar.db"),
		logLevel:   DefaultLogLevel,
		logFormat:  LogFormatPretty,
		scrape:     NewScrapeConfig(),
		integrator: NewIntegratorConfig(),
		places:     NewPlacesConfig(),
		embedding:  NewEmbeddingConfig(),
		resilience: NewResilienceConfig(),
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// Scrape returns the scraper configuration.
func (c AppConfig) Scrape() ScrapeConfig { return c.scrape }

// Integrator returns the integrator configuration.
func (c AppConfig) Integrator() IntegratorConfig { return c.integrator }

// Places returns the places configuration.
func (c AppConfig) Places() PlacesConfig { return c.places }

// Embedding returns the embedding configuration.
func (c AppConfig) Embedding() EmbeddingConfig { return c.embedding }

// Resilience returns the resilience configuration.
func (c AppConfig) Resilience() ResilienceConfig { return c.resilience }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		if c.dbURL == "" || strings.Contains(c.dbURL, "gigradar.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "gigradar.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithScrapeConfig sets the scrape config.
func WithScrapeConfig(s ScrapeConfig) AppConfigOption {
	return func(c *AppConfig) { c.scrape = s }
}

// WithIntegratorConfig sets the integrator config.
func WithIntegratorConfig(i IntegratorConfig) AppConfigOption {
	return func(c *AppConfig) { c.integrator = i }
}

// WithPlacesConfig sets the places config.
func WithPlacesConfig(p PlacesConfig) AppConfigOption {
	return func(c *AppConfig) { c.places = p }
}

// WithEmbeddingConfig sets the embedding config.
func WithEmbeddingConfig(e EmbeddingConfig) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithResilienceConfig sets the resilience config.
func WithResilienceConfig(r ResilienceConfig) AppConfigOption {
	return func(c *AppConfig) { c.resilience = r }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.Bool("places_enrichment", c.places.Enabled()),
		slog.Int("places_refresh_days", c.places.RefreshDays()),
		slog.String("embedding_model", c.embedding.Model()),
		slog.Int("embedding_dimensions", c.embedding.Dimensions()),
		slog.Int("scrape_cap_per_source", c.scrape.CapPerSource()),
		slog.Int("integrator_chunk", c.integrator.ChunkSize()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}
