package ports

import (
	"context"

	"github.com/serviceops/conveyor/pkg/domain"
)

// InstanceStore defines the interface for persisting pipeline instances.
// Stores keep instances durable across restarts; the orchestrator remains
// the only writer.
type InstanceStore interface {
	// Save persists the instance under its ID.
	Save(ctx context.Context, inst *domain.Instance) error

	// Load retrieves an instance by ID.
	// Returns domain.ErrInstanceNotFound if the instance does not exist.
	Load(ctx context.Context, id string) (*domain.Instance, error)

	// Delete removes an instance. Used by retention jobs, never by the
	// transition path: terminal instances remain for audit reads.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored instances.
	List(ctx context.Context) ([]string, error)
}
