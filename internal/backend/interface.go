package backend

import (
	"context"

	"fintrack/internal/ports"
)

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// BackendResult contains the store and its optional cleanup and readiness
// hooks.
type BackendResult struct {
	Store   ports.Store
	Cleanup CleanupFunc
	// Ready is nil for backends that are always reachable.
	Ready func(ctx context.Context) error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
