package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LedgerPath          string
	DatabasePath        string
	ScreenerServiceURL  string
	RationaleServiceURL string // empty disables rationale generation
	EvaluationSchedule  string // cron spec for the weekly cycle
	LogLevel            string
	Port                int
	DevMode             bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LedgerPath:          getEnv("LEDGER_PATH", "./data/portfolio_history.json"),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/trades.db"),
		ScreenerServiceURL:  getEnv("SCREENER_SERVICE_URL", "http://localhost:8000"),
		RationaleServiceURL: getEnv("RATIONALE_SERVICE_URL", ""),
		EvaluationSchedule:  getEnv("EVALUATION_SCHEDULE", "0 0 9 * * MON"), // Monday 09:00
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("GO_PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ScreenerServiceURL == "" {
		return fmt.Errorf("SCREENER_SERVICE_URL is required")
	}
	// Rationale service optional: fallback reasons are used without it.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
