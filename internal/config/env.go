package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides cfg from the environment. Unset or unparsable values
// leave the current setting in place.
func ApplyEnv(cfg *Config) {
	cfg.HTTPAddr = readEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RedisAddr = readEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = readEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = readEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.WindowSize = readEnvInt("ANALYTICS_WINDOW", cfg.WindowSize)
	cfg.Threshold = readEnvFloat("ANALYTICS_THRESHOLD", cfg.Threshold)
	cfg.HistoryLimit = readEnvInt("HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.QueueSize = readEnvInt("QUEUE_SIZE", cfg.QueueSize)
}

func readEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func readEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
