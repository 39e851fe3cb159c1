package conveyor

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/serviceops/conveyor/internal/logging"
	"github.com/serviceops/conveyor/internal/orchestrator"
	"github.com/serviceops/conveyor/pkg/adapters/memory"
	"github.com/serviceops/conveyor/pkg/advisory"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/instances"
	"github.com/serviceops/conveyor/pkg/ports"
	"github.com/serviceops/conveyor/pkg/registry"
)

// Version is the current release of the Conveyor library.
const Version = "0.3.0"

// Engine is the high-level entry point for the Conveyor library. It wraps
// the internal orchestrator and provides a simplified API for consumers:
// register handlers, start, then submit actions.
type Engine struct {
	graph    *graph.Graph
	registry *registry.Registry
	manager  *instances.Manager
	orch     *orchestrator.Orchestrator

	store          ports.InstanceStore
	locker         ports.DistributedLocker
	advisor        ports.Advisor
	notifier       *advisory.Notifier
	hooks          domain.LifecycleHooks
	handlerTimeout time.Duration
	logger         *slog.Logger

	started bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore injects a custom instance store (default: in-memory).
func WithStore(s ports.InstanceStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithAdvisor wires an advisory decision engine. The engine wraps it in an
// asynchronous notifier, so implementations may block without affecting the
// commit path.
func WithAdvisor(a ports.Advisor) Option {
	return func(e *Engine) {
		e.advisor = a
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithHandlerTimeout bounds domain handler execution (default 30s).
func WithHandlerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.handlerTimeout = d
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a Conveyor Engine over a validated stage graph.
// Handlers are registered afterwards and Start seals the configuration.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("conveyor: a stage graph is required")
	}

	eng := &Engine{
		graph:    g,
		registry: registry.New(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	mgrOpts := []instances.Option{instances.WithLogger(eng.logger)}
	if eng.locker != nil {
		mgrOpts = append(mgrOpts, instances.WithLocker(eng.locker))
	}
	eng.manager = instances.NewManager(eng.store, mgrOpts...)

	return eng, nil
}

// Register adds a domain handler for (stage, action). Must happen before
// Start; duplicate registrations are a startup error.
func (e *Engine) Register(stage domain.Stage, action domain.Action, h registry.Handler) error {
	if e.started {
		return &domain.DuplicateRegistrationError{Stage: stage, Action: action}
	}
	return e.registry.Register(stage, action, h)
}

// Start seals the registry, verifies that every graph rule has a handler,
// and builds the orchestrator. No action traffic is accepted before Start
// succeeds; a failure here is a fatal configuration error.
func (e *Engine) Start() error {
	if e.started {
		return fmt.Errorf("conveyor: engine already started")
	}

	e.registry.Freeze()

	var advisor ports.Advisor
	if e.advisor != nil {
		e.notifier = advisory.NewNotifier(e.advisor, advisory.WithLogger(e.logger))
		advisor = e.notifier
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(e.logger),
		orchestrator.WithLifecycleHooks(e.hooks),
	}
	if advisor != nil {
		orchOpts = append(orchOpts, orchestrator.WithAdvisor(advisor))
	}
	if e.handlerTimeout > 0 {
		orchOpts = append(orchOpts, orchestrator.WithHandlerTimeout(e.handlerTimeout))
	}

	e.orch = orchestrator.New(e.graph, e.registry, e.manager, orchOpts...)

	if err := e.orch.ValidateRegistrations(); err != nil {
		return fmt.Errorf("conveyor: incomplete registry: %w", err)
	}

	e.started = true
	return nil
}

// CreateInstance starts a new unit of work at the graph's entry stage.
func (e *Engine) CreateInstance(ctx context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error) {
	if err := e.ensureStarted(); err != nil {
		return domain.Snapshot{}, err
	}
	return e.orch.CreateInstance(ctx, origin, initial)
}

// SubmitAction is the sole mutation entry point for pipeline instances.
func (e *Engine) SubmitAction(ctx context.Context, instanceID string, action domain.Action, role domain.Role, payload map[string]any) (*domain.TransitionResult, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	return e.orch.SubmitAction(ctx, instanceID, action, role, payload)
}

// GetInstance returns a read-only snapshot of an instance.
func (e *Engine) GetInstance(ctx context.Context, instanceID string) (domain.Snapshot, error) {
	if err := e.ensureStarted(); err != nil {
		return domain.Snapshot{}, err
	}
	return e.orch.GetInstance(ctx, instanceID)
}

// GetHistory returns the audit trail of an instance.
func (e *Engine) GetHistory(ctx context.Context, instanceID string) ([]domain.TransitionRecord, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	return e.orch.GetHistory(ctx, instanceID)
}

// Recommendations returns the advisory engine's output for an instance.
// Empty when no advisor is wired or the advisor fails.
func (e *Engine) Recommendations(ctx context.Context, instanceID string) ([]domain.Recommendation, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	return e.orch.Recommendations(ctx, instanceID)
}

// Graph exposes the immutable stage graph (introspection, rendering).
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// AdvisoryDropped reports how many advisory notifications were discarded
// under backpressure. Zero when no advisor is wired.
func (e *Engine) AdvisoryDropped() uint64 {
	if e.notifier == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// ListInstances returns the IDs of all known instances.
func (e *Engine) ListInstances(ctx context.Context) ([]string, error) {
	return e.manager.List(ctx)
}

// Close flushes the advisory notifier. Safe to call once after traffic stops.
func (e *Engine) Close() error {
	if e.notifier != nil {
		return e.notifier.Close()
	}
	return nil
}

func (e *Engine) ensureStarted() error {
	if !e.started {
		return fmt.Errorf("conveyor: engine not started (call Start after registering handlers)")
	}
	return nil
}
