// Package backend selects and opens the store behind the session token slot.
package backend

import (
	"context"
	"fmt"

	applog "finboard/internal/log"
	"finboard/internal/storage"
	"finboard/internal/tokens/memory"
	"finboard/internal/tokens/redisstore"
)

// DefaultFactory opens the backends of this package.
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend validates cfg and opens the selected backend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		res   *BackendResult
		attrs []any
		err   error
	)
	switch cfg.Type {
	case SQLiteBackend:
		var slot *storage.SlotStore
		if slot, err = storage.OpenSlotStore(ctx, cfg.SQLiteDBPath, f.logger); err == nil {
			res = &BackendResult{Store: slot, Cleanup: slot.Close, Health: slot.Ping}
			attrs = []any{"db_path", cfg.SQLiteDBPath, "schema_version", slot.SchemaVersion()}
		}
	case RedisBackend:
		var rs *redisstore.Store
		if rs, err = redisstore.New(ctx, cfg.RedisURL); err == nil {
			res = &BackendResult{Store: rs, Cleanup: rs.Close, Health: rs.Ping}
		}
	case MemoryBackend:
		res = &BackendResult{Store: memory.New(cfg.InitialToken)}
		attrs = []any{"seeded", cfg.InitialToken != ""}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s token slot: %w", cfg.Type, err)
	}

	f.logger.InfoContext(ctx, "Token slot ready", append([]any{applog.FieldBackend, cfg.Type.String()}, attrs...)...)
	return res, nil
}
