// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

// Writer names accepted in sink.writers.
const (
	WriterJSONL    = "jsonl"
	WriterPostgres = "postgres"
	WriterSQLite   = "sqlite"
	WriterPubSub   = "pubsub"
	WriterRedis    = "redis"
	WriterMemory   = "memory"
)

// Storage backends accepted in storage.backend.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

var knownWriters = []string{WriterJSONL, WriterPostgres, WriterSQLite, WriterPubSub, WriterRedis, WriterMemory}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	SeedURL         string   `mapstructure:"seed_url"`
	AllowedDomains  []string `mapstructure:"allowed_domains"`
	Concurrency     int      `mapstructure:"concurrency"`
	DedupeRequests  bool     `mapstructure:"dedupe_requests"`
	MaxCatalogPages int      `mapstructure:"max_catalog_pages"`
	FetchAttempts   int      `mapstructure:"fetch_attempts"`
	UserAgent       string   `mapstructure:"user_agent"`
	RespectRobots   bool     `mapstructure:"respect_robots"`
	PerDomainMax    int      `mapstructure:"per_domain_max"`
	DelayMs         int      `mapstructure:"delay_ms"`
	RandomDelayMs   int      `mapstructure:"random_delay_ms"`

	// RequestsPerSecond paces fetches per host on top of the delays. Zero
	// disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// ServerConfig controls the status HTTP server that runs beside a crawl.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SinkConfig lists the destinations every record is written to.
type SinkConfig struct {
	Writers []string `mapstructure:"writers"`
}

// StorageConfig selects where JSONL exports are uploaded.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	EnsureSchema           bool   `mapstructure:"ensure_schema"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
	WAL  bool   `mapstructure:"wal"`
}

// PubSubConfig holds the Pub/Sub destination.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RedisConfig holds the Redis stream destination.
type RedisConfig struct {
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	Stream      string `mapstructure:"stream"`
	StreamCount int    `mapstructure:"stream_count"`
	MaxLen      int64  `mapstructure:"max_len"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// environment. An empty path tries ./.env and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seed_url", crawler.DefaultSeedURL)
	v.SetDefault("crawler.allowed_domains", crawler.DefaultAllowedDomains)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.dedupe_requests", true)
	v.SetDefault("crawler.max_catalog_pages", 0)
	v.SetDefault("crawler.fetch_attempts", 3)
	v.SetDefault("crawler.user_agent", "mixtape-crawler/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.per_domain_max", 2)
	v.SetDefault("crawler.delay_ms", 500)
	v.SetDefault("crawler.random_delay_ms", 250)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("sink.writers", []string{WriterJSONL})
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "mixtapes")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "mixtapes")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 3600)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("sqlite.path", "data/mixtapes.db")
	v.SetDefault("sqlite.wal", true)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "mixtapes")
	v.SetDefault("redis.stream_count", 1)
	v.SetDefault("redis.max_len", 0)
}

func (c *Config) normalize() {
	writers := make([]string, 0, len(c.Sink.Writers))
	for _, w := range c.Sink.Writers {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !slices.Contains(writers, w) {
			writers = append(writers, w)
		}
	}
	c.Sink.Writers = writers
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return errors.New("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxCatalogPages < 0 {
		return errors.New("crawler.max_catalog_pages must be >= 0")
	}
	if c.Crawler.FetchAttempts < 0 {
		return errors.New("crawler.fetch_attempts must be >= 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return errors.New("crawler.requests_per_second must be >= 0")
	}
	if c.Crawler.DelayMs < 0 || c.Crawler.RandomDelayMs < 0 {
		return errors.New("crawler.delay_ms and crawler.random_delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return errors.New("server.port must be > 0 when the server is enabled")
	}
	if len(c.Sink.Writers) == 0 {
		return errors.New("sink.writers must name at least one writer")
	}
	for _, w := range c.Sink.Writers {
		if err := c.validateWriter(w); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validateWriter(name string) error {
	switch name {
	case WriterJSONL:
		switch c.Storage.Backend {
		case BackendLocal:
			if c.Storage.LocalDir == "" {
				return errors.New("storage.local_dir is required for the local backend")
			}
		case BackendGCS:
			if c.Storage.GCSBucket == "" {
				return errors.New("storage.gcs_bucket is required for the gcs backend")
			}
		case BackendMemory:
		default:
			return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
		}
	case WriterPostgres:
		if c.DB.DSN == "" {
			return errors.New("db.dsn is required for the postgres writer")
		}
	case WriterSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite writer")
		}
	case WriterPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return errors.New("pubsub.project_id and pubsub.topic_name are required for the pubsub writer")
		}
	case WriterRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis writer")
		}
	case WriterMemory:
	default:
		return fmt.Errorf("sink.writers: unknown writer %q (known: %s)", name, strings.Join(knownWriters, ", "))
	}
	return nil
}

// EngineConfig converts the crawler section into engine settings.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		SeedURL:         c.Crawler.SeedURL,
		AllowedDomains:  c.Crawler.AllowedDomains,
		Concurrency:     c.Crawler.Concurrency,
		DedupeRequests:  c.Crawler.DedupeRequests,
		MaxCatalogPages: c.Crawler.MaxCatalogPages,
	}
}

// RequestTimeout returns the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
