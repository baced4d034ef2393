// Package config loads the runtime settings from the environment. A .env
// file in the working directory is read first when present; variables that
// are already set win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"workboard/internal/util"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Addr           string
	DBPath         string
	LogLevel       slog.Level
	JWTSecret      string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	Redis          RedisConfig
}

// Load reads the configuration. envFiles default to ".env"; a missing file
// is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Addr:           util.EnvOrDefault("WORKBOARD_ADDR", ":8080"),
		DBPath:         util.EnvOrDefault("WORKBOARD_DB_PATH", "data/workboard.db"),
		JWTSecret:      os.Getenv("WORKBOARD_JWT_SECRET"),
		CacheTTL:       util.EnvDurationOrDefault("WORKBOARD_CACHE_TTL", 5*time.Minute),
		RequestTimeout: util.EnvDurationOrDefault("WORKBOARD_REQUEST_TIMEOUT", 15*time.Second),
		Redis: RedisConfig{
			Enabled:  util.EnvBoolOrDefault("WORKBOARD_REDIS_ENABLED", false),
			Addr:     util.EnvOrDefault("WORKBOARD_REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("WORKBOARD_REDIS_PASSWORD"),
			DB:       util.EnvIntOrDefault("WORKBOARD_REDIS_DB", 0),
		},
	}

	level, err := ParseLevel(util.EnvOrDefault("WORKBOARD_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level
	return cfg, cfg.Validate()
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("WORKBOARD_ADDR must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("WORKBOARD_DB_PATH must not be empty"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("WORKBOARD_JWT_SECRET must be at least 32 bytes"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("WORKBOARD_REDIS_ADDR is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("WORKBOARD_LOG_LEVEL: %w", err)
	}
	return level, nil
}
