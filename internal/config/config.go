package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const defaultInviteCode = "dev-invite-code"

type Config struct {
	Port        string
	Env         string
	DBDriver    string
	DatabaseDSN string
	InviteCode  string
	Log         LogConfig

	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
	ShutdownTimeout    time.Duration
}

// LogConfig controls the slog handler built by the logging package.
type LogConfig struct {
	Level  string
	Format string
	// File switches output from stdout to a size-rotated file when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() Config {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DBDriver:    getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN: getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/foldr?parseTime=true"),
		InviteCode:  getEnv("INVITE_CODE", defaultInviteCode),
		Log:         loadLogConfig("LOG_"),

		AuthRateLimitRPS:   getEnvFloat("AUTH_RATE_LIMIT_RPS", 5),
		AuthRateLimitBurst: getEnvInt("AUTH_RATE_LIMIT_BURST", 10),
		ShutdownTimeout:    10 * time.Second,
	}

	if cfg.Env == "production" && cfg.InviteCode == defaultInviteCode {
		slog.Error("INVITE_CODE must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func loadLogConfig(prefix string) LogConfig {
	return LogConfig{
		Level:      getEnv(prefix+"LEVEL", "info"),
		Format:     getEnv(prefix+"FORMAT", "json"),
		File:       getEnv(prefix+"FILE", ""),
		MaxSizeMB:  getEnvInt(prefix+"MAX_SIZE_MB", 50),
		MaxBackups: getEnvInt(prefix+"MAX_BACKUPS", 3),
		MaxAgeDays: getEnvInt(prefix+"MAX_AGE_DAYS", 28),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
