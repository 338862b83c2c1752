package config

import (
	"os"
	"path/filepath"
	"time"
)

// ClientConfig holds settings for the foldr CLI. Flags parsed by the command
// override these values.
type ClientConfig struct {
	ServerURL    string
	DataDir      string
	CacheVersion string
	ProxyAddr    string
	Timeout      time.Duration

	// HealthInterval is how often the proxy checks the server while idle.
	HealthInterval time.Duration
	Log            LogConfig
}

// LoadClient reads FOLDR_* environment variables.
func LoadClient() ClientConfig {
	return ClientConfig{
		ServerURL:      getEnv("FOLDR_SERVER_URL", "http://localhost:8080"),
		DataDir:        getEnv("FOLDR_DATA_DIR", defaultDataDir()),
		CacheVersion:   getEnv("FOLDR_CACHE_VERSION", "v1"),
		ProxyAddr:      getEnv("FOLDR_PROXY_ADDR", "127.0.0.1:8787"),
		Timeout:        getEnvDuration("FOLDR_TIMEOUT", 10*time.Second),
		HealthInterval: getEnvDuration("FOLDR_HEALTH_INTERVAL", 30*time.Second),
		Log: LogConfig{
			Level:      getEnv("FOLDR_LOG_LEVEL", "info"),
			Format:     getEnv("FOLDR_LOG_FORMAT", "text"),
			File:       getEnv("FOLDR_LOG_FILE", ""),
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 14,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "foldr")
	}
	return ".foldr"
}
