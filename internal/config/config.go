package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"

	SinkHTTP  = "http"
	SinkKafka = "kafka"
)

// Config is the resolved runtime configuration of the messaging host.
type Config struct {
	HTTPAddr string
	LogLevel string

	PingURL        string
	PermissionURL  string
	ImpressionURL  string
	SubscriptionID string
	DeviceID       string
	AppVersion     string
	HTTPTimeout    time.Duration

	CacheDriver   string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	ImpressionSink string
	KafkaBrokers   []string
	KafkaTopic     string

	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMultiplier float64
	RetryJitter     float64

	MaxPersistentEvents   int
	AdvanceOnAssetFailure bool
	DisplayDuration       time.Duration
}

// configFile mirrors the YAML layout of config/inapp.yaml.
type configFile struct {
	Server struct {
		Addr     string `yaml:"addr"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Backend struct {
		PingURL        string `yaml:"ping_url"`
		PermissionURL  string `yaml:"permission_url"`
		ImpressionURL  string `yaml:"impression_url"`
		SubscriptionID string `yaml:"subscription_id"`
		DeviceID       string `yaml:"device_id"`
		AppVersion     string `yaml:"app_version"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Cache struct {
		Driver   string `yaml:"driver"`
		TTLHours int    `yaml:"ttl_hours"`
		Redis    struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"cache"`
	Impressions struct {
		Sink  string `yaml:"sink"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"impressions"`
	Retry struct {
		InitialMillis int     `yaml:"initial_ms"`
		MaxMillis     int     `yaml:"max_ms"`
		Multiplier    float64 `yaml:"multiplier"`
		Jitter        float64 `yaml:"jitter"`
	} `yaml:"retry"`
	Engine struct {
		MaxPersistentEvents   int   `yaml:"max_persistent_events"`
		AdvanceOnAssetFailure *bool `yaml:"advance_on_asset_failure"`
		DisplayMillis         int   `yaml:"display_ms"`
	} `yaml:"engine"`
}

// Load resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		AppVersion:          "1.0.0",
		HTTPTimeout:         10 * time.Second,
		CacheDriver:         CacheMemory,
		CacheTTL:            30 * 24 * time.Hour,
		RedisAddr:           "localhost:6379",
		PostgresDSN:         "user=user dbname=campaign_db sslmode=disable",
		ImpressionSink:      SinkHTTP,
		KafkaBrokers:        []string{"localhost:9092"},
		KafkaTopic:          "inapp.impressions",
		RetryInitial:        time.Second,
		RetryMax:            5 * time.Minute,
		RetryMultiplier:     2,
		RetryJitter:         0.5,
		MaxPersistentEvents: 10,
		DisplayDuration:     3 * time.Second,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			var f configFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
			f.apply(&cfg)
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.HTTPAddr = envOrDefault("INAPP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = strings.ToLower(envOrDefault("INAPP_LOG_LEVEL", cfg.LogLevel))
	cfg.PingURL = envOrDefault("INAPP_PING_URL", cfg.PingURL)
	cfg.PermissionURL = envOrDefault("INAPP_PERMISSION_URL", cfg.PermissionURL)
	cfg.ImpressionURL = envOrDefault("INAPP_IMPRESSION_URL", cfg.ImpressionURL)
	cfg.SubscriptionID = envOrDefault("INAPP_SUBSCRIPTION_ID", cfg.SubscriptionID)
	cfg.DeviceID = envOrDefault("INAPP_DEVICE_ID", cfg.DeviceID)
	cfg.AppVersion = envOrDefault("INAPP_APP_VERSION", cfg.AppVersion)
	cfg.HTTPTimeout = envDuration("INAPP_HTTP_TIMEOUT", cfg.HTTPTimeout)

	cfg.CacheDriver = strings.ToLower(envOrDefault("INAPP_CACHE_DRIVER", cfg.CacheDriver))
	cfg.CacheTTL = envDuration("INAPP_CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = envOrDefault("INAPP_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOrDefault("INAPP_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("INAPP_REDIS_DB", cfg.RedisDB)
	cfg.PostgresDSN = envOrDefault("INAPP_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.ImpressionSink = strings.ToLower(envOrDefault("INAPP_IMPRESSION_SINK", cfg.ImpressionSink))
	cfg.KafkaBrokers = envCSV("INAPP_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("INAPP_KAFKA_TOPIC", cfg.KafkaTopic)

	cfg.RetryInitial = envDuration("INAPP_RETRY_INITIAL", cfg.RetryInitial)
	cfg.RetryMax = envDuration("INAPP_RETRY_MAX", cfg.RetryMax)
	cfg.MaxPersistentEvents = envInt("INAPP_MAX_PERSISTENT_EVENTS", cfg.MaxPersistentEvents)
	cfg.AdvanceOnAssetFailure = envBool("INAPP_ADVANCE_ON_ASSET_FAILURE", cfg.AdvanceOnAssetFailure)
	cfg.DisplayDuration = envDuration("INAPP_DISPLAY_DURATION", cfg.DisplayDuration)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f configFile) apply(cfg *Config) {
	if f.Server.Addr != "" {
		cfg.HTTPAddr = f.Server.Addr
	}
	if f.Server.LogLevel != "" {
		cfg.LogLevel = f.Server.LogLevel
	}
	if f.Backend.PingURL != "" {
		cfg.PingURL = f.Backend.PingURL
	}
	if f.Backend.PermissionURL != "" {
		cfg.PermissionURL = f.Backend.PermissionURL
	}
	if f.Backend.ImpressionURL != "" {
		cfg.ImpressionURL = f.Backend.ImpressionURL
	}
	if f.Backend.SubscriptionID != "" {
		cfg.SubscriptionID = f.Backend.SubscriptionID
	}
	if f.Backend.DeviceID != "" {
		cfg.DeviceID = f.Backend.DeviceID
	}
	if f.Backend.AppVersion != "" {
		cfg.AppVersion = f.Backend.AppVersion
	}
	if f.Backend.TimeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(f.Backend.TimeoutSeconds) * time.Second
	}
	if f.Cache.Driver != "" {
		cfg.CacheDriver = f.Cache.Driver
	}
	if f.Cache.TTLHours > 0 {
		cfg.CacheTTL = time.Duration(f.Cache.TTLHours) * time.Hour
	}
	if f.Cache.Redis.Addr != "" {
		cfg.RedisAddr = f.Cache.Redis.Addr
	}
	if f.Cache.Redis.Password != "" {
		cfg.RedisPassword = f.Cache.Redis.Password
	}
	if f.Cache.Redis.DB > 0 {
		cfg.RedisDB = f.Cache.Redis.DB
	}
	if f.Cache.Postgres.DSN != "" {
		cfg.PostgresDSN = f.Cache.Postgres.DSN
	}
	if f.Impressions.Sink != "" {
		cfg.ImpressionSink = f.Impressions.Sink
	}
	if len(f.Impressions.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = f.Impressions.Kafka.Brokers
	}
	if f.Impressions.Kafka.Topic != "" {
		cfg.KafkaTopic = f.Impressions.Kafka.Topic
	}
	if f.Retry.InitialMillis > 0 {
		cfg.RetryInitial = time.Duration(f.Retry.InitialMillis) * time.Millisecond
	}
	if f.Retry.MaxMillis > 0 {
		cfg.RetryMax = time.Duration(f.Retry.MaxMillis) * time.Millisecond
	}
	if f.Retry.Multiplier > 0 {
		cfg.RetryMultiplier = f.Retry.Multiplier
	}
	if f.Retry.Jitter > 0 {
		cfg.RetryJitter = f.Retry.Jitter
	}
	if f.Engine.MaxPersistentEvents > 0 {
		cfg.MaxPersistentEvents = f.Engine.MaxPersistentEvents
	}
	if f.Engine.AdvanceOnAssetFailure != nil {
		cfg.AdvanceOnAssetFailure = *f.Engine.AdvanceOnAssetFailure
	}
	if f.Engine.DisplayMillis > 0 {
		cfg.DisplayDuration = time.Duration(f.Engine.DisplayMillis) * time.Millisecond
	}
}

func (c Config) validate() error {
	switch c.CacheDriver {
	case CacheMemory, CacheRedis:
	case CachePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("missing INAPP_POSTGRES_DSN for postgres cache")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.CacheDriver)
	}
	switch c.ImpressionSink {
	case SinkHTTP:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("missing INAPP_KAFKA_BROKERS/INAPP_KAFKA_TOPIC for kafka sink")
		}
	default:
		return fmt.Errorf("unknown impression sink %q", c.ImpressionSink)
	}
	if c.RetryJitter < 0 || c.RetryJitter >= 1 {
		return fmt.Errorf("retry jitter must be in [0, 1), got %v", c.RetryJitter)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("1500ms", "2m").
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
