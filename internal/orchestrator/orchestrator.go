package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/serviceops/conveyor/internal/logging"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/instances"
	"github.com/serviceops/conveyor/pkg/ports"
	"github.com/serviceops/conveyor/pkg/registry"
)

// Orchestrator is the state machine driver and the only component permitted
// to mutate a pipeline instance. It validates a requested transition against
// the stage graph, checks the caller's role, invokes the matching handler
// and applies the result atomically under the per-instance lock.
type Orchestrator struct {
	graph    *graph.Graph
	registry *registry.Registry
	manager  *instances.Manager

	advisor        ports.Advisor // optional; must be non-blocking (see pkg/advisory)
	handlerTimeout time.Duration
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	newID          func() string
}

// New wires an orchestrator over its collaborators.
func New(g *graph.Graph, reg *registry.Registry, mgr *instances.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:          g,
		registry:       reg,
		manager:        mgr,
		handlerTimeout: 30 * time.Second,
		logger:         logging.NewNop(),
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateRegistrations checks that every graph rule has a registered
// handler. Called at startup, before traffic: a rule without a handler is a
// configuration defect that must not be discovered at runtime.
func (o *Orchestrator) ValidateRegistrations() error {
	for _, r := range o.graph.Rules() {
		if _, ok := o.registry.Resolve(r.From, r.Action); !ok {
			return &domain.HandlerNotRegisteredError{Stage: r.From, Action: r.Action}
		}
	}
	return nil
}

// CreateInstance places a new instance at the graph entry stage with a
// synthetic creation record and persists it.
func (o *Orchestrator) CreateInstance(ctx context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error) {
	inst := domain.NewInstance(o.newID(), o.graph.Entry(), origin, initial)

	if err := o.manager.Create(ctx, inst); err != nil {
		return domain.Snapshot{}, err
	}

	snap := inst.Snapshot()
	o.logger.Info("instance created",
		"instance_id", inst.ID,
		"origin", inst.Origin,
		"stage", inst.CurrentStage,
	)
	o.notifyAdvisor(snap, inst.History[0])
	return snap, nil
}

// GetInstance returns a read-only snapshot. Lock-free: readers tolerate a
// recent consistent view.
func (o *Orchestrator) GetInstance(ctx context.Context, id string) (domain.Snapshot, error) {
	inst, err := o.manager.Load(ctx, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return inst.Snapshot(), nil
}

// GetHistory returns the audit trail of an instance.
func (o *Orchestrator) GetHistory(ctx context.Context, id string) ([]domain.TransitionRecord, error) {
	inst, err := o.manager.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return inst.History, nil
}

// Recommendations surfaces the advisory engine's current output for an
// instance. Advisor failures are logged and yield an empty list; they are
// never a pipeline error.
func (o *Orchestrator) Recommendations(ctx context.Context, id string) ([]domain.Recommendation, error) {
	if o.advisor == nil {
		return nil, nil
	}
	recs, err := o.advisor.Recommendations(ctx, id)
	if err != nil {
		o.logger.Warn("advisor recommendations failed", "instance_id", id, "err", err)
		return nil, nil
	}
	return recs, nil
}

// SubmitAction drives one transition attempt through the full validation
// and commit sequence. All calls for the same instance are serialized.
//
// On failure the instance's stage and payload are untouched; only the
// history may gain a rejected record.
func (o *Orchestrator) SubmitAction(ctx context.Context, id string, action domain.Action, role domain.Role, payload map[string]any) (*domain.TransitionResult, error) {
	var result *domain.TransitionResult

	err := o.manager.WithLock(ctx, id, func(ctx context.Context) error {
		inst, err := o.manager.Store().Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrInstanceNotFound) {
				return fmt.Errorf("submit %s: %w", id, domain.ErrInstanceNotFound)
			}
			return fmt.Errorf("failed to load instance %s: %w", id, err)
		}

		if inst.Terminated || o.graph.IsTerminal(inst.CurrentStage) {
			return o.reject(ctx, inst, action, role, inst.CurrentStage,
				&domain.InstanceTerminalError{ID: inst.ID, Stage: inst.CurrentStage})
		}

		rule, ok := o.graph.Rule(inst.CurrentStage, action)
		if !ok {
			return o.reject(ctx, inst, action, role, "",
				&domain.InvalidTransitionError{From: inst.CurrentStage, Action: action})
		}

		if rule.Role != role {
			return o.reject(ctx, inst, action, role, rule.To,
				&domain.RoleNotAuthorizedError{From: inst.CurrentStage, Action: action, Required: rule.Role, Actual: role})
		}

		if rule.Guard.Check != nil && !rule.Guard.Check(inst.Payload) {
			return o.reject(ctx, inst, action, role, rule.To,
				&domain.GuardNotSatisfiedError{From: inst.CurrentStage, Action: action, Guard: rule.Guard.Name})
		}

		handler, ok := o.registry.Resolve(inst.CurrentStage, action)
		if !ok {
			return o.reject(ctx, inst, action, role, rule.To,
				&domain.HandlerNotRegisteredError{Stage: inst.CurrentStage, Action: action})
		}

		snap := inst.Snapshot()
		o.emitHandlerCall(ctx, inst.ID, inst.CurrentStage, action)
		started := time.Now()
		hres, herr := o.invokeHandler(ctx, handler, snap, payload)
		o.emitHandlerReturn(ctx, inst.ID, inst.CurrentStage, action, time.Since(started), herr != nil)
		if herr != nil {
			return o.reject(ctx, inst, action, role, rule.To,
				&domain.HandlerExecutionError{Stage: inst.CurrentStage, Action: action, Cause: herr})
		}

		to := rule.To
		if hres.ToStage != "" {
			if !o.graph.HasStage(hres.ToStage) {
				return o.reject(ctx, inst, action, role, rule.To,
					&domain.HandlerExecutionError{
						Stage:  inst.CurrentStage,
						Action: action,
						Cause:  fmt.Errorf("handler routed to undeclared stage %s", hres.ToStage),
					})
			}
			to = hres.ToStage
		}

		record := domain.TransitionRecord{
			Timestamp: time.Now().UTC(),
			From:      inst.CurrentStage,
			To:        to,
			Action:    action,
			ActorRole: role,
			Outcome:   domain.OutcomeCommitted,
		}

		// Commit. The full mutation is assembled in memory and persisted
		// with a single Save, so a store failure leaves no partial state.
		inst.CurrentStage = to
		inst.MergePayload(hres.Delta)
		if hres.Priority != nil {
			inst.Priority = *hres.Priority
		}
		if o.graph.IsTerminal(to) {
			inst.Terminated = true
		}
		inst.History = append(inst.History, record)

		if err := o.manager.Store().Save(ctx, inst); err != nil {
			return fmt.Errorf("failed to persist transition for %s: %w", id, err)
		}

		snap = inst.Snapshot()
		result = &domain.TransitionResult{Snapshot: snap, Record: record}

		o.logger.Info("transition committed",
			"instance_id", inst.ID,
			"from", record.From,
			"to", record.To,
			"action", action,
			"actor_role", role,
		)
		o.emitTransition(ctx, inst.ID, record)
		o.notifyAdvisor(snap, record)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// reject appends a rejected record, persists it, emits hooks and returns the
// typed error. The instance's stage and payload are never touched here. If
// persisting the audit record itself fails, the original rejection still
// wins; the store failure is logged.
func (o *Orchestrator) reject(ctx context.Context, inst *domain.Instance, action domain.Action, role domain.Role, to domain.Stage, cause error) error {
	record := domain.TransitionRecord{
		Timestamp: time.Now().UTC(),
		From:      inst.CurrentStage,
		To:        to,
		Action:    action,
		ActorRole: role,
		Outcome:   domain.OutcomeRejected,
		Reason:    cause.Error(),
	}
	inst.History = append(inst.History, record)

	if err := o.manager.Store().Save(ctx, inst); err != nil {
		o.logger.Error("failed to persist rejection record",
			"instance_id", inst.ID,
			"action", action,
			"err", err,
		)
	}

	o.logger.Warn("transition rejected",
		"instance_id", inst.ID,
		"stage", inst.CurrentStage,
		"action", action,
		"actor_role", role,
		"kind", domain.KindOf(cause),
		"reason", cause.Error(),
	)
	o.emitTransition(ctx, inst.ID, record)
	o.notifyAdvisor(inst.Snapshot(), record)
	return cause
}

// invokeHandler runs the handler under a bounded timeout, detached from the
// caller's cancellation: once the commit sequence has begun, only the
// timeout may interrupt it. A timeout is treated identically to a handler
// failure. Panics are contained and surfaced as errors.
func (o *Orchestrator) invokeHandler(ctx context.Context, h registry.Handler, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.handlerTimeout)
	defer cancel()

	type outcome struct {
		res registry.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		res, err := h(hctx, snap, payload)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-hctx.Done():
		// The goroutine is left to finish; its result is discarded.
		return registry.Result{}, fmt.Errorf("handler timed out after %s: %w", o.handlerTimeout, hctx.Err())
	}
}

// notifyAdvisor forwards a transition record to the advisory engine.
// Fire-and-forget: the advisor wired here is expected to enqueue without
// blocking (pkg/advisory.Notifier); any error or panic stays on this side
// of the boundary.
func (o *Orchestrator) notifyAdvisor(snap domain.Snapshot, rec domain.TransitionRecord) {
	if o.advisor == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("advisor notify panicked", "instance_id", snap.ID, "panic", r)
		}
	}()
	if err := o.advisor.NotifyTransition(context.Background(), snap, rec); err != nil {
		o.logger.Warn("advisor notify failed", "instance_id", snap.ID, "err", err)
	}
}

func (o *Orchestrator) emitTransition(ctx context.Context, id string, rec domain.TransitionRecord) {
	event := &domain.TransitionEvent{
		Timestamp:  rec.Timestamp,
		InstanceID: id,
		From:       rec.From,
		To:         rec.To,
		Action:     rec.Action,
		ActorRole:  rec.ActorRole,
		Outcome:    rec.Outcome,
		Reason:     rec.Reason,
	}
	if rec.Outcome == domain.OutcomeCommitted {
		if o.hooks.OnTransitionCommitted != nil {
			o.hooks.OnTransitionCommitted(ctx, event)
		}
		return
	}
	if o.hooks.OnTransitionRejected != nil {
		o.hooks.OnTransitionRejected(ctx, event)
	}
}

func (o *Orchestrator) emitHandlerCall(ctx context.Context, id string, stage domain.Stage, action domain.Action) {
	if o.hooks.OnHandlerCall == nil {
		return
	}
	o.hooks.OnHandlerCall(ctx, &domain.HandlerEvent{
		Timestamp:  time.Now().UTC(),
		InstanceID: id,
		Stage:      stage,
		Action:     action,
	})
}

func (o *Orchestrator) emitHandlerReturn(ctx context.Context, id string, stage domain.Stage, action domain.Action, d time.Duration, isErr bool) {
	if o.hooks.OnHandlerReturn == nil {
		return
	}
	o.hooks.OnHandlerReturn(ctx, &domain.HandlerEvent{
		Timestamp:  time.Now().UTC(),
		InstanceID: id,
		Stage:      stage,
		Action:     action,
		Duration:   d,
		IsError:    isErr,
	})
}
