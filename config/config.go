package config

import (
	"os"
	"strconv"
	"time"

	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
)

type Config struct {
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string

	// Sync scheduler
	SyncEnabled  bool
	SyncInterval time.Duration
	SyncDaysBack int
	SyncMaxCount int

	// Classification
	ClassifyCacheTTL time.Duration

	// Search index resync cap
	ResyncMaxRows int
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "onebox"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.0),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		// Sync scheduler
		SyncEnabled:  getEnvBool("SYNC_ENABLED", true),
		SyncInterval: time.Duration(getEnvInt("SYNC_INTERVAL_SEC", 300)) * time.Second,
		SyncDaysBack: getEnvInt("SYNC_DAYS_BACK", 30),
		SyncMaxCount: getEnvInt("SYNC_MAX_COUNT", 1000),

		// Classification
		ClassifyCacheTTL: time.Duration(getEnvInt("CLASSIFY_CACHE_TTL_MIN", 1440)) * time.Minute,

		// Search index resync cap
		ResyncMaxRows: getEnvInt("RESYNC_MAX_ROWS", 10000),
	}

	if cfg.DatabaseURL == "" {
		return nil, apperr.ConfigError("DATABASE_URL must be set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
