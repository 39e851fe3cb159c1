package orchestrator

import (
	"time"

	"log/slog"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/ports"
)

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithAdvisor wires the advisory decision engine. The advisor must not
// block: wrap raw implementations in advisory.NewNotifier.
func WithAdvisor(a ports.Advisor) Option {
	return func(o *Orchestrator) {
		o.advisor = a
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithHandlerTimeout bounds handler execution inside the commit sequence.
// An exceeded timeout rejects the transition like any handler failure.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.handlerTimeout = d
		}
	}
}

// WithLogger sets a structured logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator overrides instance ID generation (tests use deterministic IDs).
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}
