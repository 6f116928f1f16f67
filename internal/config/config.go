package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	RedisURL     string
	RedisChannel string

	SettingsCacheTTL time.Duration

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	LogMode string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseType:         getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:         getEnv("DB_PATH", "./familyregistry.db"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisChannel:         getEnv("REDIS_SETTINGS_CHANNEL", "settings:invalidate"),
		SettingsCacheTTL:     getDuration("SETTINGS_CACHE_TTL", 5*time.Minute),
		RetryMaxAttempts:     getInt("DB_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: getDuration("DB_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
		RetryMaxInterval:     getDuration("DB_RETRY_MAX_INTERVAL", 2*time.Second),
		LogMode:              getEnv("APP_ENV", "development"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
