package domain

import (
	"context"
	"time"
)

// TransitionEvent describes one transition attempt for observability hooks.
type TransitionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	InstanceID string    `json:"instance_id"`
	From       Stage     `json:"from"`
	To         Stage     `json:"to,omitempty"`
	Action     Action    `json:"action"`
	ActorRole  Role      `json:"actor_role"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

// HandlerEvent describes a domain handler invocation.
type HandlerEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	InstanceID string        `json:"instance_id"`
	Stage      Stage         `json:"stage"`
	Action     Action        `json:"action"`
	Duration   time.Duration `json:"duration,omitempty"`
	IsError    bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
// All fields are optional; nil hooks are skipped.
type LifecycleHooks struct {
	OnTransitionCommitted func(context.Context, *TransitionEvent)
	OnTransitionRejected  func(context.Context, *TransitionEvent)
	OnHandlerCall         func(context.Context, *HandlerEvent)
	OnHandlerReturn       func(context.Context, *HandlerEvent)
}
