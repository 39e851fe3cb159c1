package registry

import (
	"context"
	"sync"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Result is what a handler hands back to the orchestrator on success.
// Handlers never touch the instance: the orchestrator applies the result
// inside its commit step.
type Result struct {
	// ToStage overrides the rule's declared target. Leave empty to accept
	// the graph default. Must name a declared stage when set.
	ToStage domain.Stage

	// Delta is merged (not replacing) into the instance payload.
	Delta map[string]any

	// Priority, when non-nil, updates the instance priority. Only explicit
	// actions flow through here; advisory suggestions never do.
	Priority *domain.Priority
}

// Handler performs the domain work for one (stage, action) pair. It receives
// a read-only snapshot plus the submitted payload and returns data for the
// orchestrator to apply, or an error to reject the transition.
type Handler func(ctx context.Context, snap domain.Snapshot, payload map[string]any) (Result, error)

// Registrar is the registration surface domain modules program against.
// Satisfied by *Registry and by the engine facade.
type Registrar interface {
	Register(stage domain.Stage, action domain.Action, h Handler) error
}

type key struct {
	stage  domain.Stage
	action domain.Action
}

// Registry maps (stage, action) pairs to domain handlers. Domain modules
// populate it during process initialization; Freeze seals it before any
// action traffic is accepted.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key]Handler
	frozen   bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[key]Handler)}
}

// Register adds a handler for (stage, action). Registering the same pair
// twice, or registering after Freeze, is a startup programming error.
func (r *Registry) Register(stage domain.Stage, action domain.Action, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &domain.DuplicateRegistrationError{Stage: stage, Action: action}
	}
	k := key{stage, action}
	if _, exists := r.handlers[k]; exists {
		return &domain.DuplicateRegistrationError{Stage: stage, Action: action}
	}
	r.handlers[k] = h
	return nil
}

// MustRegister is Register for static wiring paths where a duplicate is
// unrecoverable.
func (r *Registry) MustRegister(stage domain.Stage, action domain.Action, h Handler) {
	if err := r.Register(stage, action, h); err != nil {
		panic(err)
	}
}

// Freeze seals the registry. Called once, after all domain modules have
// registered and before traffic starts.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve looks up the handler for (stage, action).
func (r *Registry) Resolve(stage domain.Stage, action domain.Action) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key{stage, action}]
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
