package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Log       LogConfig
	Prices    PriceConfig
	Cursor    CursorConfig
	TaxRates  model.TaxRates
	Scheduler SchedulerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// PriceConfig throttles the external price provider.
type PriceConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// CursorConfig holds the key signing pagination cursors.
// An empty key means one is generated per process.
type CursorConfig struct {
	Key string
	TTL time.Duration
}

// SchedulerConfig holds the cron spec of the nightly price refresh.
// An empty schedule disables the scheduler.
type SchedulerConfig struct {
	PriceRefresh string
}

// DefaultTaxRates are placeholder rates; deployments override them.
var DefaultTaxRates = model.TaxRates{
	ShortTermCapitalGains: 0.37,
	LongTermCapitalGains:  0.15,
	QualifiedDividends:    0.15,
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/ledger.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Cursor: CursorConfig{
			Key: os.Getenv("CURSOR_KEY"),
		},
		Scheduler: SchedulerConfig{
			PriceRefresh: getEnv("PRICE_REFRESH_SCHEDULE", "0 22 * * 1-5"),
		},
	}

	var errs []error

	rps, err := getEnvFloat("PRICE_PROVIDER_RPS", 2)
	errs = append(errs, err)
	burst, err := getEnvInt("PRICE_PROVIDER_BURST", 1)
	errs = append(errs, err)
	timeout, err := getEnvDuration("PRICE_PROVIDER_TIMEOUT", 15*time.Second)
	errs = append(errs, err)
	config.Prices = PriceConfig{RequestsPerSecond: rps, Burst: burst, Timeout: timeout}

	ttl, err := getEnvDuration("CURSOR_TTL", 24*time.Hour)
	errs = append(errs, err)
	config.Cursor.TTL = ttl

	rates, err := LoadTaxRates(os.Getenv("TAX_RATES_FILE"), DefaultTaxRates)
	errs = append(errs, err)
	config.TaxRates = rates

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// LoadTaxRates starts from base, applies the TOML file at path when path is
// set, then the TAX_RATE_* environment overrides. Unknown keys in the file
// are rejected so a misspelled rate cannot silently fall back to a default.
func LoadTaxRates(path string, base model.TaxRates) (model.TaxRates, error) {
	rates := base

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return model.TaxRates{}, fmt.Errorf("failed to read tax rates file: %w", err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rates); err != nil {
			return model.TaxRates{}, fmt.Errorf("failed to parse tax rates file %s: %w", path, err)
		}
	}

	overrides := []struct {
		key string
		dst *float64
	}{
		{"TAX_RATE_SHORT_TERM", &rates.ShortTermCapitalGains},
		{"TAX_RATE_LONG_TERM", &rates.LongTermCapitalGains},
		{"TAX_RATE_DIVIDENDS", &rates.QualifiedDividends},
	}
	for _, o := range overrides {
		v, err := getEnvFloat(o.key, *o.dst)
		if err != nil {
			return model.TaxRates{}, err
		}
		*o.dst = v
	}

	if err := validateRates(rates); err != nil {
		return model.TaxRates{}, err
	}
	return rates, nil
}

func validateRates(r model.TaxRates) error {
	for name, v := range map[string]float64{
		"shortTermCapitalGains": r.ShortTermCapitalGains,
		"longTermCapitalGains":  r.LongTermCapitalGains,
		"qualifiedDividends":    r.QualifiedDividends,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("tax rate %s must be a fraction between 0 and 1, got %g", name, v)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
