package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, reading from environment variables")
	}
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	getEnv := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}

	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	format := getEnv("LOG_FORMAT", "text")
	if format != "text" && format != "json" {
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q, want text or json", format)
	}

	return Config{
		Port:     getEnv("PORT", "8080"),
		DBPath:   getEnv("DB_PATH", "bracket.db"),
		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: cacheTTL,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: format,
		},
		Limit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
	}, nil
}
