// Package config loads and validates the scraper configuration from
// defaults, an optional config file, and BBB_-prefixed environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Config is the root configuration, one section per concern.
type Config struct {
	BBB       BBBConfig       `mapstructure:"bbb"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Keywords  []string        `mapstructure:"keywords"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BBBConfig points the scraper at the listing site.
type BBBConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SearchText string `mapstructure:"search_text"`
	Country    string `mapstructure:"country"`
}

// HTTPConfig tunes the fetcher shared by search and detail requests.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
	// RequestsPerSecond caps request starts globally across search and
	// detail fetches. One shared limiter, one upstream quota.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Timeout returns the per-request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base delay between retry attempts.
func (c HTTPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// CrawlConfig shapes a single run: which targets, how many records, and
// how the run relates to a previous checkpoint. The crawl command binds
// its flags onto these keys.
type CrawlConfig struct {
	TargetsFile      string `mapstructure:"targets_file"`
	RecordsPerTarget int    `mapstructure:"records_per_target"`
	// TotalCap stops the run after this many records across all targets.
	// Zero means uncapped.
	TotalCap int  `mapstructure:"total_cap"`
	Resume   bool `mapstructure:"resume"`
	Reset    bool `mapstructure:"reset"`
	// Skip drops the first N targets; MaxTargets keeps at most N after
	// skipping. Start and End select a 1-based inclusive range instead,
	// zero meaning unbounded on that side.
	Skip       int `mapstructure:"skip"`
	MaxTargets int `mapstructure:"max_targets"`
	Start      int `mapstructure:"start"`
	End        int `mapstructure:"end"`
}

// EnrichConfig gates the per-record detail-page fetch.
type EnrichConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HeadlessConfig gates the Chrome render fallback for shell pages.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	// MinBodyBytes is the document size under which a markerless page is
	// treated as an unhydrated shell.
	MinBodyBytes int `mapstructure:"min_body_bytes"`
}

// NavTimeout returns the page-navigation deadline.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// PathsConfig locates the run's files on disk.
type PathsConfig struct {
	Output      string `mapstructure:"output"`
	Checkpoint  string `mapstructure:"checkpoint"`
	Summary     string `mapstructure:"summary"`
	Unsupported string `mapstructure:"unsupported"`
	// DebugDir receives raw page dumps for listings that returned 200 but
	// yielded no records. Empty disables dumping.
	DebugDir string `mapstructure:"debug_dir"`
}

// ServerConfig controls the optional read-only status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// StorageConfig selects where post-run backups of the output land.
// Backend is one of "noop", "local", or "gcs".
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	Bucket   string `mapstructure:"bucket"`
	LocalDir string `mapstructure:"local_dir"`
}

// DatabaseConfig mirrors accepted records into Postgres when DSN is set.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// ConnLifetime returns the pooled-connection lifetime.
func (c DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMinutes) * time.Minute
}

// PublisherConfig selects the event publisher. Backend is one of "noop",
// "memory", or "pubsub".
type PublisherConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig tunes the event hub feeding the progress sinks.
type ProgressConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	LogEnabled     bool `mapstructure:"log_enabled"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs  int  `mapstructure:"sink_timeout_ms"`
}

// MaxBatchWait returns the longest a partial batch is held before flush.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMs) * time.Millisecond
}

// SinkTimeout returns the per-sink delivery deadline.
func (c ProgressConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutMs) * time.Millisecond
}

// LoggingConfig switches between console and JSON logging.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from defaults, the optional file at path, and
// the environment, then validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BBB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a Config from an already-initialized
// viper instance, such as the global one the CLI populates.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults registers every configuration key with its default value.
// AutomaticEnv only resolves keys viper knows about, so even zero-valued
// keys are listed here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bbb.base_url", crawler.DefaultBaseURL)
	v.SetDefault("bbb.search_text", crawler.DefaultSearchText)
	v.SetDefault("bbb.country", crawler.DefaultCountry)

	v.SetDefault("keywords", crawler.DefaultKeywords)

	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_ms", 2000)
	v.SetDefault("http.requests_per_second", 1.0)

	v.SetDefault("crawl.targets_file", "targets.json")
	v.SetDefault("crawl.records_per_target", 0)
	v.SetDefault("crawl.total_cap", 0)
	v.SetDefault("crawl.resume", false)
	v.SetDefault("crawl.reset", false)
	v.SetDefault("crawl.skip", 0)
	v.SetDefault("crawl.max_targets", 0)
	v.SetDefault("crawl.start", 0)
	v.SetDefault("crawl.end", 0)

	v.SetDefault("enrich.enabled", true)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.min_body_bytes", 2048)

	v.SetDefault("paths.output", "roofing_businesses.csv")
	v.SetDefault("paths.checkpoint", "crawl_checkpoint.json")
	v.SetDefault("paths.summary", "crawl_summary.json")
	v.SetDefault("paths.unsupported", "unsupported_targets.json")
	v.SetDefault("paths.debug_dir", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")

	v.SetDefault("storage.backend", "noop")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local_dir", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "roofing_businesses")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)

	v.SetDefault("publisher.backend", "noop")
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "")

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 1000)
	v.SetDefault("progress.sink_timeout_ms", 10000)

	v.SetDefault("logging.development", false)
}

// Validate fails fast on values no run could work with.
func (c Config) Validate() error {
	if c.BBB.BaseURL == "" {
		return fmt.Errorf("bbb.base_url is required")
	}
	if c.BBB.SearchText == "" {
		return fmt.Errorf("bbb.search_text is required")
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("keywords must list at least one entry")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be >= 1, got %d", c.HTTP.MaxRetries)
	}
	if c.HTTP.RetryDelayMs < 0 {
		return fmt.Errorf("http.retry_delay_ms must be >= 0, got %d", c.HTTP.RetryDelayMs)
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be > 0, got %g", c.HTTP.RequestsPerSecond)
	}
	if c.Crawl.RecordsPerTarget < 0 {
		return fmt.Errorf("crawl.records_per_target must be >= 0, got %d", c.Crawl.RecordsPerTarget)
	}
	if c.Crawl.TotalCap < 0 {
		return fmt.Errorf("crawl.total_cap must be >= 0, got %d", c.Crawl.TotalCap)
	}
	if c.Crawl.Skip < 0 {
		return fmt.Errorf("crawl.skip must be >= 0, got %d", c.Crawl.Skip)
	}
	if c.Crawl.MaxTargets < 0 {
		return fmt.Errorf("crawl.max_targets must be >= 0, got %d", c.Crawl.MaxTargets)
	}
	if c.Crawl.Start < 0 || c.Crawl.End < 0 {
		return fmt.Errorf("crawl.start and crawl.end must be >= 0")
	}
	if c.Crawl.Start > 0 && c.Crawl.End > 0 && c.Crawl.End < c.Crawl.Start {
		return fmt.Errorf("crawl.end %d precedes crawl.start %d", c.Crawl.End, c.Crawl.Start)
	}
	if c.Headless.Enabled {
		if c.Headless.MaxParallel < 0 {
			return fmt.Errorf("headless.max_parallel must be >= 0, got %d", c.Headless.MaxParallel)
		}
		if c.Headless.NavTimeoutSeconds <= 0 {
			return fmt.Errorf("headless.nav_timeout_seconds must be > 0, got %d", c.Headless.NavTimeoutSeconds)
		}
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}
	if c.Paths.Checkpoint == "" {
		return fmt.Errorf("paths.checkpoint is required")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Storage.Backend {
	case "noop", "":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be noop, local, or gcs, got %q", c.Storage.Backend)
	}
	switch c.Publisher.Backend {
	case "noop", "", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" {
			return fmt.Errorf("publisher.project_id is required for the pubsub backend")
		}
		if c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.topic is required for the pubsub backend")
		}
	default:
		return fmt.Errorf("publisher.backend must be noop, memory, or pubsub, got %q", c.Publisher.Backend)
	}
	if c.Database.DSN != "" && c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database.max_conns %d is below database.min_conns %d", c.Database.MaxConns, c.Database.MinConns)
	}
	return nil
}

// CrawlerConfig assembles the search-level knobs the orchestrator takes.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		BaseURL:          c.BBB.BaseURL,
		SearchText:       c.BBB.SearchText,
		Country:          c.BBB.Country,
		Keywords:         append([]string(nil), c.Keywords...),
		RecordsPerTarget: c.Crawl.RecordsPerTarget,
		EnrichDetails:    c.Enrich.Enabled,
	}
}
