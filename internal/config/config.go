package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	AppEnv           string
	Port             string
	RedisURL         string
	LogLevel         string
	CountdownSeconds int
	DefaultDuration  int
	CleanupSeconds   int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		RedisURL: getEnv("REDIS_URL", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.CountdownSeconds, err = getEnvInt("COUNTDOWN_SECONDS", 3); err != nil {
		return nil, err
	}
	if cfg.DefaultDuration, err = getEnvInt("DEFAULT_RACE_DURATION", 60); err != nil {
		return nil, err
	}
	if cfg.CleanupSeconds, err = getEnvInt("RACE_CLEANUP_SECONDS", 60); err != nil {
		return nil, err
	}

	if cfg.CountdownSeconds <= 0 {
		return nil, fmt.Errorf("COUNTDOWN_SECONDS must be positive")
	}
	if cfg.DefaultDuration <= 0 {
		return nil, fmt.Errorf("DEFAULT_RACE_DURATION must be positive")
	}
	if cfg.CleanupSeconds <= 0 {
		return nil, fmt.Errorf("RACE_CLEANUP_SECONDS must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
