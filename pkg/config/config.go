package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Redis
	Redis RedisConfig

	// Market data provider
	Provider ProviderConfig

	// Screening engine
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration

	// Requests per second against the provider, with burst headroom
	RateLimit float64
	RateBurst int
}

// EngineConfig holds refresh cycle configuration
// 점수 임계값 기본값은 internal/engine/scoring 참조
type EngineConfig struct {
	CacheTTL     time.Duration // Snapshot reuse window
	Workers      int           // Concurrent per-instrument workers
	LookbackDays int           // Daily bar lookback for the screener universe

	// Box breakout strategy
	VWAPConfirm bool // Require price on the VWAP-confirming side
}

// Load reads configuration from environment variables. An explicit env
// file path overrides the default .env search.
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFile(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Market data provider
		Provider: ProviderConfig{
			BaseURL:   getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:   getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
			RateLimit: getEnvAsFloat("PROVIDER_RATE_LIMIT", 5.0),
			RateBurst: getEnvAsInt("PROVIDER_RATE_BURST", 10),
		},

		// Screening engine
		Engine: EngineConfig{
			CacheTTL:     getEnvAsDuration("ENGINE_CACHE_TTL", "300s"),
			Workers:      getEnvAsInt("ENGINE_WORKERS", 10),
			LookbackDays: getEnvAsInt("ENGINE_LOOKBACK_DAYS", 5),
			VWAPConfirm:  getEnvAsBool("ENGINE_VWAP_CONFIRM", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.Workers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS must be positive")
	}

	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("ENGINE_CACHE_TTL must be positive")
	}

	if c.Engine.LookbackDays < 2 {
		return fmt.Errorf("ENGINE_LOOKBACK_DAYS must be at least 2")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile loads the given env files, or tries the default .env
// locations when none are given. Missing defaults are fine; a missing
// explicit file is an error.
func loadEnvFile(envFiles ...string) error {
	if len(envFiles) > 0 {
		for _, path := range envFiles {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("load env file %s: %w", path, err)
			}
		}
		return nil
	}

	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return nil
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
