// Package config loads server settings from MAPGAME_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
)

// Session backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds server configuration.
type Config struct {
	ListenAddr     string `env:"MAPGAME_LISTEN_ADDR" envDefault:":8080"`
	SessionBackend string `env:"MAPGAME_SESSION_BACKEND" envDefault:"sqlite"`

	SQLitePath  string `env:"MAPGAME_SQLITE_PATH" envDefault:"data/mapgame.db"`
	PostgresDSN string `env:"MAPGAME_POSTGRES_DSN"`

	RedisAddr     string `env:"MAPGAME_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"MAPGAME_REDIS_PASSWORD"`
	RedisDB       int    `env:"MAPGAME_REDIS_DB" envDefault:"0"`

	// SessionTTL is how long an untouched session survives.
	SessionTTL     time.Duration `env:"MAPGAME_SESSION_TTL" envDefault:"24h"`
	SweepInterval  time.Duration `env:"MAPGAME_SWEEP_INTERVAL" envDefault:"10m"`
	RequestTimeout time.Duration `env:"MAPGAME_REQUEST_TIMEOUT" envDefault:"30s"`

	// DefinitionsDir holds YAML/JSON definitions. With the sqlite backend it
	// is imported into the database at startup and may be empty.
	DefinitionsDir string `env:"MAPGAME_DEFINITIONS_DIR" envDefault:"definitions"`

	// Language selects the game-over summary catalog.
	Language string `env:"MAPGAME_LANGUAGE" envDefault:"en"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.SessionBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("MAPGAME_SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("MAPGAME_POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("MAPGAME_REDIS_ADDR is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	if c.SessionBackend != BackendSQLite && c.DefinitionsDir == "" {
		errs = append(errs, errors.New("MAPGAME_DEFINITIONS_DIR is required unless definitions live in sqlite"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if _, err := c.LanguageTag(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LanguageTag parses Language.
func (c Config) LanguageTag() (language.Tag, error) {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und, fmt.Errorf("language %q: %w", c.Language, err)
	}
	return tag, nil
}
