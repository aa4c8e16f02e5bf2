package backend

import (
	"context"

	"finboard/internal/tokens"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// HealthFunc probes the backend behind a token slot.
type HealthFunc func(ctx context.Context) error

// BackendResult contains the token slot with optional cleanup and health probe
type BackendResult struct {
	Store   tokens.Store
	Cleanup CleanupFunc
	Health  HealthFunc
}

// Check runs the health probe, or reads the slot when the backend has none.
func (r *BackendResult) Check(ctx context.Context) error {
	if r.Health != nil {
		return r.Health(ctx)
	}
	_, _, err := r.Store.Get(ctx)
	return err
}

// Close runs the cleanup function if there is one
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates token slot backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
