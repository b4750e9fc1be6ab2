package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aura-nw/smart-account-sample/pkg/observability"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// Config holds runtime configuration.
type Config struct {
	LogLevel       string
	StoreBackend   string
	SQLitePath     string
	DatabaseURL    string
	RedisAddr      string
	RedisDB        int
	StoreCacheSize int
	AddressPrefix  string
	ChainID        string
	OTelEnabled    bool
	OTelEndpoint   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = store.BackendMemory
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "smart-account.db"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to local generic postgres
		dbURL = "postgres://smartaccount@localhost:5432/smartaccount?sslmode=disable"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	prefix := os.Getenv("ADDRESS_PREFIX")
	if prefix == "" {
		prefix = "aura"
	}

	chainID := os.Getenv("CHAIN_ID")
	if chainID == "" {
		chainID = "aura-testnet"
	}

	otelEndpoint := os.Getenv("OTEL_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:       logLevel,
		StoreBackend:   backend,
		SQLitePath:     sqlitePath,
		DatabaseURL:    dbURL,
		RedisAddr:      redisAddr,
		RedisDB:        envInt("REDIS_DB", 0),
		StoreCacheSize: envInt("STORE_CACHE_SIZE", 0),
		AddressPrefix:  prefix,
		ChainID:        chainID,
		OTelEnabled:    os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:   otelEndpoint,
	}
}

// envInt reads a non-negative integer, falling back to def when unset or malformed.
func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// SlogLevel maps LogLevel to a slog level. Unknown names select Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreOptions returns the options store.Open expects.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.StoreBackend,
		SQLitePath:  c.SQLitePath,
		DatabaseURL: c.DatabaseURL,
		RedisAddr:   c.RedisAddr,
		RedisDB:     c.RedisDB,
		CacheSize:   c.StoreCacheSize,
	}
}

// Observability returns the telemetry configuration.
func (c *Config) Observability() *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.OTelEnabled
	oc.OTLPEndpoint = c.OTelEndpoint
	oc.Environment = c.ChainID
	return oc
}
