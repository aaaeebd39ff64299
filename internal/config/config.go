// Package config loads the FinDocGPT service configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Cache      CacheConfig
	Snapshot   SnapshotConfig
	MarketData MarketDataConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// CacheConfig holds cache service configuration. TTLClasses is parsed
// from CACHE_TTL_CLASSES ("intraday=15m,market=30m,..."); when the
// variable is unset the built-in defaults apply.
type CacheConfig struct {
	ShardCount    int
	SweepInterval time.Duration
	TTLClasses    map[string]time.Duration
}

// SnapshotConfig selects the snapshot backend. When RedisAddr is set
// the snapshot is stored in Redis, otherwise in Path on local disk.
// Both empty disables snapshots.
type SnapshotConfig struct {
	Path      string
	RedisAddr string
}

// MarketDataConfig holds the upstream market data API configuration.
type MarketDataConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Load creates a Config from environment variables. Malformed
// CACHE_TTL_CLASSES entries are a startup error, not a silent default.
func Load() (Config, error) {
	ttlClasses, err := parseTTLClasses(os.Getenv("CACHE_TTL_CLASSES"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
		Cache: CacheConfig{
			ShardCount:    getEnvInt("CACHE_SHARD_COUNT", 0),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
			TTLClasses:    ttlClasses,
		},
		Snapshot: SnapshotConfig{
			Path:      getEnv("CACHE_SNAPSHOT_PATH", ""),
			RedisAddr: getEnv("REDIS_ADDR", ""),
		},
		MarketData: MarketDataConfig{
			BaseURL:        getEnv("MARKET_DATA_URL", "http://localhost:9090"),
			RequestTimeout: getEnvDuration("MARKET_DATA_TIMEOUT", 30*time.Second),
		},
	}, nil
}

// parseTTLClasses parses "class=duration" pairs separated by commas,
// e.g. "intraday=15m,daily=1h". An empty input returns nil so the
// caller falls back to the built-in TTL table.
func parseTTLClasses(s string) (map[string]time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	classes := make(map[string]time.Duration)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid CACHE_TTL_CLASSES entry %q: expected class=duration", pair)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid CACHE_TTL_CLASSES entry %q: empty class name", pair)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL_CLASSES entry %q: %w", pair, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid CACHE_TTL_CLASSES entry %q: duration must be positive", pair)
		}
		classes[name] = d
	}
	if len(classes) == 0 {
		return nil, nil
	}
	return classes, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
