package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	Port     string
	DBPath   string
	RedisURL string
	CacheTTL time.Duration
	Log      LogConfig
	Limit    RateLimitConfig
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}
