// Package config loads runtime settings from the environment.
//
// Configuration is read ONCE, by the composition root (cmd/warbler), and
// then passed down explicitly. No other package looks at environment
// variables, so importing a package never opens a database by accident.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvBcryptCost  = "BCRYPT_COST"
	EnvLogLevel    = "LOG_LEVEL"
)

// Defaults used when a variable is unset.
const (
	DefaultDatabaseURL = "data/warbler.db"
	DefaultBcryptCost  = 12
)

// Config holds every setting the CLI needs.
type Config struct {
	DatabaseURL string     // SQLite path, "file:" URI or ":memory:"
	BcryptCost  int        // 4..31
	LogLevel    slog.Level // debug, info, warn or error
}

// Load reads an optional .env file from the working directory (or the
// given files) and then builds a Config from the environment. Variables
// already set in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv to look variables up. Tests pass a
// map-backed function instead of touching the process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		DatabaseURL: DefaultDatabaseURL,
		BcryptCost:  DefaultBcryptCost,
		LogLevel:    slog.LevelInfo,
	}

	if v := strings.TrimSpace(getenv(EnvDatabaseURL)); v != "" {
		cfg.DatabaseURL = v
	}

	if v := strings.TrimSpace(getenv(EnvBcryptCost)); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s=%q is not an integer", EnvBcryptCost, v)
		}
		if cost < 4 || cost > 31 {
			return Config{}, fmt.Errorf("config: %s=%d must be between 4 and 31", EnvBcryptCost, cost)
		}
		cfg.BcryptCost = cost
	}

	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: %s=%q: %w", EnvLogLevel, v, err)
		}
	}

	return cfg, nil
}
