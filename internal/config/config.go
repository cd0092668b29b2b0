// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir           string // Base directory for the price history database (always absolute)
	Port              int
	LogLevel          string
	DevMode           bool
	MarketDataBaseURL string        // Daily price CSV provider
	BenchmarkSymbol   string        // Market benchmark ticker (default SPY)
	HistoryWindowDays int           // Lookback window for price history
	RequestTimeout    time.Duration // Hard per-request budget for the full pipeline
	QuantumRuntimeURL string        // Remote quantum runtime endpoint (hardware backend)
	CircuitDepth      int           // QAOA layers (p)
	ShotBudget        int           // Final high-shot sample size
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QF_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("QF_PORT", 8080),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		MarketDataBaseURL: getEnv("MARKET_DATA_URL", "https://stooq.com/q/d/l"),
		BenchmarkSymbol:   getEnv("BENCHMARK_SYMBOL", "SPY"),
		HistoryWindowDays: getEnvAsInt("HISTORY_WINDOW_DAYS", 730),
		RequestTimeout:    time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		QuantumRuntimeURL: getEnv("QUANTUM_RUNTIME_URL", ""),
		CircuitDepth:      getEnvAsInt("QAOA_DEPTH", 2),
		ShotBudget:        getEnvAsInt("QAOA_SHOTS", 1024),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate performs basic sanity checks on loaded values
func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CircuitDepth < 1 {
		return fmt.Errorf("circuit depth must be at least 1, got %d", c.CircuitDepth)
	}
	if c.ShotBudget < 1 {
		return fmt.Errorf("shot budget must be at least 1, got %d", c.ShotBudget)
	}
	if c.HistoryWindowDays < 30 {
		return fmt.Errorf("history window too short: %d days", c.HistoryWindowDays)
	}
	return nil
}

// getEnv retrieves an environment variable value with a fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
