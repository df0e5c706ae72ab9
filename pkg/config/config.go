package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Content    ContentConfig
	Source     SourceConfig
	Cache      CacheConfig
	Sinks      SinkConfig
	RateLimit  RateLimitConfig
	LiveReload LiveReloadConfig

	// HTTPSPromote redirects plain HTTP requests to their HTTPS equivalent.
	HTTPSPromote bool

	// AccessLogging writes one access event per request to the configured sinks.
	AccessLogging bool

	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type ContentConfig struct {
	Path           string
	IndexDocument  string
	FallbackAsset  string
	ListingEnabled bool
}

type SourceConfig struct {
	Backend string // "dir" or "s3"
	S3      S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
}

type CacheConfig struct {
	Enabled        bool
	Backend        string // "memory" or "redis"
	TTL            time.Duration
	MaxObjectBytes int64
	Redis          RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SinkConfig struct {
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	Postgres   PostgresConfig
	BufferSize int
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

type CloudWatchConfig struct {
	Enabled         bool
	LogGroupName    string
	LogStreamName   string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int
	FlushInterval   time.Duration
}

type PostgresConfig struct {
	Enabled       bool
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	BatchSize     int
	FlushInterval time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LiveReloadConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load builds the configuration from the environment and the command line.
// Flags are the documented runtime contract and win over env values.
func Load(args []string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Content: ContentConfig{
			Path:           getEnv("CONTENT_PATH", "/srv/http"),
			IndexDocument:  getEnv("INDEX_DOCUMENT", "index.html"),
			FallbackAsset:  getEnv("FALLBACK_ASSET", ""),
			ListingEnabled: getEnvBool("LISTING_ENABLED", false),
		},
		Source: SourceConfig{
			Backend: getEnv("SOURCE_BACKEND", "dir"),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Region:          getEnv("S3_REGION", "ru-central1"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
				KeyPrefix:       getEnv("S3_KEY_PREFIX", ""),
			},
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			Backend:        getEnv("CACHE_BACKEND", "memory"),
			TTL:            getEnvDuration("CACHE_TTL", time.Minute),
			MaxObjectBytes: getEnvInt64("CACHE_MAX_OBJECT_BYTES", 1024*1024),
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
		},
		Sinks: SinkConfig{
			BufferSize: getEnvInt("ACCESS_BUFFER_SIZE", 1024),
			NATS: NATSConfig{
				Enabled: getEnvBool("NATS_ENABLED", false),
				URL:     getEnv("NATS_URL", "nats://localhost:4222"),
				Subject: getEnv("NATS_SUBJECT", "staticserve.access"),
			},
			CloudWatch: CloudWatchConfig{
				Enabled:         getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
				LogGroupName:    getEnv("CLOUDWATCH_LOG_GROUP", "/staticserve/access"),
				LogStreamName:   getEnv("CLOUDWATCH_LOG_STREAM", "default"),
				Region:          getEnv("CLOUDWATCH_REGION", "us-east-1"),
				Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
				AccessKeyID:     getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
				BufferSize:      getEnvInt("CLOUDWATCH_LOGS_BUFFER_SIZE", 50),
				FlushInterval:   getEnvDuration("CLOUDWATCH_LOGS_FLUSH_INTERVAL", 5*time.Second),
			},
			Postgres: PostgresConfig{
				Enabled:       getEnvBool("PG_ARCHIVE_ENABLED", false),
				Host:          getEnv("DB_HOST", "localhost"),
				Port:          getEnv("DB_PORT", "5432"),
				User:          getEnv("DB_USER", "postgres"),
				Password:      getEnv("DB_PASSWORD", "postgres"),
				Database:      getEnv("DB_NAME", "staticserve"),
				BatchSize:     getEnvInt("PG_ARCHIVE_BATCH_SIZE", 100),
				FlushInterval: getEnvDuration("PG_ARCHIVE_FLUSH_INTERVAL", 5*time.Second),
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 200),
		},
		LiveReload: LiveReloadConfig{
			Enabled:  getEnvBool("LIVERELOAD_ENABLED", false),
			Interval: getEnvDuration("LIVERELOAD_INTERVAL", time.Second),
		},
		HTTPSPromote:  getEnvBool("HTTPS_PROMOTE", false),
		AccessLogging: getEnvBool("ACCESS_LOGGING", false),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	fs := flag.NewFlagSet("staticserve", flag.ContinueOnError)
	fs.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "port to listen on")
	fs.StringVar(&cfg.Content.Path, "path", cfg.Content.Path, "root directory of the served assets")
	fs.BoolVar(&cfg.HTTPSPromote, "https-promote", cfg.HTTPSPromote, "redirect HTTP requests to HTTPS")
	fs.BoolVar(&cfg.AccessLogging, "enable-logging", cfg.AccessLogging, "log every request")
	fs.StringVar(&cfg.Content.FallbackAsset, "fallback", cfg.Content.FallbackAsset, "asset served for extension-less misses (SPA mode)")
	fs.BoolVar(&cfg.Content.ListingEnabled, "enable-listing", cfg.Content.ListingEnabled, "render directory listings")
	fs.BoolVar(&cfg.LiveReload.Enabled, "enable-livereload", cfg.LiveReload.Enabled, "watch the asset tree and push reload events over WebSocket")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %q", c.Server.Port)
	}

	switch c.Source.Backend {
	case "dir":
		if strings.TrimSpace(c.Content.Path) == "" {
			return fmt.Errorf("content path is required for the dir backend")
		}
	case "s3":
		if strings.TrimSpace(c.Source.S3.Bucket) == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
		if c.LiveReload.Enabled {
			return fmt.Errorf("live reload is only supported with the dir backend")
		}
	default:
		return fmt.Errorf("unsupported source backend: %q", c.Source.Backend)
	}

	if fallback := c.Content.FallbackAsset; fallback != "" {
		if strings.Contains(fallback, "..") {
			return fmt.Errorf("fallback asset must not traverse directories: %q", fallback)
		}
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unsupported cache backend: %q", c.Cache.Backend)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("CACHE_TTL must be positive")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("RATE_LIMIT_BURST must be positive")
		}
	}

	if c.LiveReload.Enabled && c.LiveReload.Interval <= 0 {
		return fmt.Errorf("LIVERELOAD_INTERVAL must be positive")
	}

	return nil
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
