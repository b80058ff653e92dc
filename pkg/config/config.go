// Package config loads gondri configuration from YAML files with
// environment-variable overrides. Every subsystem (repository, build,
// query, HTTP server, Redis, Kafka, Postgres, logging, metrics) has a typed
// section with defaults suitable for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GONDRI_"

// Config is the top-level application configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Build      BuildConfig      `yaml:"build"`
	Query      QueryConfig      `yaml:"query"`
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// RepositoryConfig locates the repository directory served or inspected.
type RepositoryConfig struct {
	Path              string `yaml:"path"`
	DocumentCacheSize int    `yaml:"documentCacheSize"`
}

// BuildConfig controls repository construction.
type BuildConfig struct {
	Stemmer   string `yaml:"stemmer"`
	Workers   int    `yaml:"workers"`
	StoreText bool   `yaml:"storeText"`
}

// QueryConfig holds the default retrieval behaviour.
type QueryConfig struct {
	DefaultResults int           `yaml:"defaultResults"`
	MaxResults     int           `yaml:"maxResults"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cacheSize"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the number of requests a client may make per RateWindow;
	// zero disables limiting.
	RateLimit   int           `yaml:"rateLimit"`
	RateWindow  time.Duration `yaml:"rateWindow"`
	CORSOrigins []string      `yaml:"corsOrigins"`

	// AdminKeys guard mutating endpoints. Empty leaves them open.
	AdminKeys []string `yaml:"adminKeys"`
}

// PostgresConfig holds PostgreSQL connection parameters for dictionary
// export.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	QueryTopic    string   `yaml:"queryTopic"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	BufferSize    int      `yaml:"bufferSize"`
	WorkerCount   int      `yaml:"workerCount"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Repository: RepositoryConfig{
			DocumentCacheSize: 1024,
		},
		Build: BuildConfig{
			Stemmer:   "krovetz",
			Workers:   4,
			StoreText: true,
		},
		Query: QueryConfig{
			DefaultResults: 100,
			MaxResults:     1000,
			Model:          "method:dirichlet,mu:2500",
			Timeout:        5 * time.Second,
			CacheSize:      512,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateWindow:      time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "gondri",
			User:            "gondri",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			QueryTopic:    "gondri-queries",
			ConsumerGroup: "gondri-analytics",
			BufferSize:    1024,
			WorkerCount:   2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Build.Stemmer {
	case "krovetz", "snowball", "none":
	default:
		return fmt.Errorf("build.stemmer %q: want krovetz, snowball or none", c.Build.Stemmer)
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers)
	}
	if c.Query.DefaultResults < 1 {
		return fmt.Errorf("query.defaultResults must be positive, got %d", c.Query.DefaultResults)
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		return fmt.Errorf("server.rateWindow must be positive when rateLimit is set")
	}
	if c.Query.MaxResults < c.Query.DefaultResults {
		return fmt.Errorf("query.maxResults (%d) below query.defaultResults (%d)", c.Query.MaxResults, c.Query.DefaultResults)
	}
	return nil
}

// applyEnvOverrides reads GONDRI_* variables through getenv and overrides
// the corresponding config fields. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(EnvPrefix + key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("REPOSITORY_PATH", &cfg.Repository.Path)
	num("REPOSITORY_CACHE_SIZE", &cfg.Repository.DocumentCacheSize)
	str("BUILD_STEMMER", &cfg.Build.Stemmer)
	num("BUILD_WORKERS", &cfg.Build.Workers)
	str("QUERY_MODEL", &cfg.Query.Model)
	num("QUERY_DEFAULT_RESULTS", &cfg.Query.DefaultResults)
	num("SERVER_PORT", &cfg.Server.Port)
	num("SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	if v := getenv(EnvPrefix + "SERVER_ADMIN_KEYS"); v != "" {
		cfg.Server.AdminKeys = strings.Split(v, ",")
	}
	flag("POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	str("POSTGRES_HOST", &cfg.Postgres.Host)
	num("POSTGRES_PORT", &cfg.Postgres.Port)
	str("POSTGRES_DATABASE", &cfg.Postgres.Database)
	str("POSTGRES_USER", &cfg.Postgres.User)
	str("POSTGRES_PASSWORD", &cfg.Postgres.Password)
	str("POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	flag("KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	str("KAFKA_QUERY_TOPIC", &cfg.Kafka.QueryTopic)
	str("KAFKA_CONSUMER_GROUP", &cfg.Kafka.ConsumerGroup)
	flag("REDIS_ENABLED", &cfg.Redis.Enabled)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("LOGGING_LEVEL", &cfg.Logging.Level)
	str("LOGGING_FORMAT", &cfg.Logging.Format)
	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	num("METRICS_PORT", &cfg.Metrics.Port)
}
