package ports

import (
	"context"

	"github.com/aretw0/redo/pkg/domain"
)

// LogStore persists the log tree of named workflows.
type LogStore interface {
	// Save replaces the log stored under name.
	Save(ctx context.Context, name string, log domain.Log) error

	// Load retrieves the log stored under name.
	// Returns domain.ErrLogNotFound if nothing was saved yet.
	Load(ctx context.Context, name string) (domain.Log, error)

	// Delete removes the log stored under name. Deleting a missing log is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored logs, sorted.
	List(ctx context.Context) ([]string, error)
}
