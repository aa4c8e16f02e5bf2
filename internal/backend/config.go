package backend

import (
	"errors"
	"fmt"
	"slices"

	"finboard/internal/config"
)

// BackendType names where the token slot lives.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
)

// ErrUnknownBackend is returned for a BackendType outside BackendTypes.
var ErrUnknownBackend = errors.New("unknown token backend")

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool { return slices.Contains(BackendTypes(), bt) }

// BackendTypes lists the supported backends in the order they are documented.
func BackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, RedisBackend}
}

// Config selects and parameterizes a token slot backend. Only the fields of
// the selected Type are read.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	RedisURL     string
	InitialToken string // memory only, empty for a signed-out start
}

// FromAppConfig picks the backend fields out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("no application config")
	}
	bc := Config{
		Type:         BackendType(cfg.TokenBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		RedisURL:     cfg.RedisURL,
	}
	if !bc.Type.IsValid() {
		return Config{}, fmt.Errorf("%w %q, want one of %v", ErrUnknownBackend, cfg.TokenBackend, BackendTypes())
	}
	return bc, nil
}

// Validate checks that the setting the selected backend needs is present.
func (c Config) Validate() error {
	var missing string
	switch c.Type {
	case MemoryBackend:
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			missing = "SQLITE_DB_PATH"
		}
	case RedisBackend:
		if c.RedisURL == "" {
			missing = "REDIS_URL"
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Type)
	}
	if missing != "" {
		return fmt.Errorf("%s backend needs %s", c.Type, missing)
	}
	return nil
}
