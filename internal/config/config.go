package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Quote providers.
const (
	QuoteEODHD  = "eodhd"
	QuoteStatic = "static"
)

// Config holds all runtime configuration for the paper trader.
type Config struct {
	Port     int
	LogLevel string

	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	QuoteProvider string
	EODHDAPIKey   string
	QuoteBaseURL  string
	QuoteExchange string
	QuotesFile    string
	QuoteTimeout  time.Duration
	QuoteRetries  int

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	BcryptCost           int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cfg := &Config{
		Port:          port,
		LogLevel:      logLevel,
		StoreDriver:   getStr("STORE_DRIVER", StoreSQLite),
		SQLitePath:    getStr("SQLITE_PATH", "papertrader.db"),
		DatabaseURL:   getStr("DATABASE_URL", ""),
		QuoteProvider: getStr("QUOTE_PROVIDER", QuoteEODHD),
		EODHDAPIKey:   getStr("EODHD_API_KEY", ""),
		QuoteBaseURL:  getStr("QUOTE_BASE_URL", "https://eodhd.com/api"),
		QuoteExchange: getStr("QUOTE_EXCHANGE", "US"),
		QuotesFile:    getStr("QUOTES_FILE", ""),
	}

	switch cfg.StoreDriver {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q, must be one of: sqlite, postgres, memory", cfg.StoreDriver)
	}

	switch cfg.QuoteProvider {
	case QuoteEODHD:
		if cfg.EODHDAPIKey == "" {
			return nil, errors.New("EODHD_API_KEY is required when QUOTE_PROVIDER=eodhd")
		}
	case QuoteStatic:
		if cfg.QuotesFile == "" {
			return nil, errors.New("QUOTES_FILE is required when QUOTE_PROVIDER=static")
		}
	default:
		return nil, fmt.Errorf("invalid QUOTE_PROVIDER: %q, must be one of: eodhd, static", cfg.QuoteProvider)
	}

	if cfg.QuoteRetries, err = getInt("QUOTE_RETRIES", 2); err != nil {
		return nil, fmt.Errorf("invalid QUOTE_RETRIES: %w", err)
	}
	if cfg.QuoteRetries < 0 {
		return nil, fmt.Errorf("invalid QUOTE_RETRIES: %d, must be >= 0", cfg.QuoteRetries)
	}

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", bcrypt.DefaultCost); err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %d, must be between %d and %d",
			cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	durations := []struct {
		key    string
		def    time.Duration
		target *time.Duration
	}{
		{"QUOTE_TIMEOUT", 5 * time.Second, &cfg.QuoteTimeout},
		{"SESSION_TTL", 12 * time.Hour, &cfg.SessionTTL},
		{"SESSION_SWEEP_INTERVAL", time.Minute, &cfg.SessionSweepInterval},
		{"READ_TIMEOUT", 5 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: %v, must be > 0", d.key, v)
		}
		*d.target = v
	}

	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
