package ports

import (
	"context"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Advisor is the boundary contract of the advisory decision engine. The
// orchestrator consults it on a side channel only: its failure or absence
// degrades recommendations, never the correctness of transitions.
type Advisor interface {
	// NotifyTransition informs the advisor of a transition attempt,
	// committed or rejected. Best effort. Errors are logged by the
	// caller's adapter and never propagate into the commit path.
	NotifyTransition(ctx context.Context, snap domain.Snapshot, rec domain.TransitionRecord) error

	// Recommendations returns the advisor's current output for an instance.
	// Read-only and independent of the commit path.
	Recommendations(ctx context.Context, instanceID string) ([]domain.Recommendation, error)
}
