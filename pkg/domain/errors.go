package domain

import (
	"errors"
	"fmt"
)

// ErrInstanceNotFound is returned when an instance ID cannot be found in the store.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrorKind is a stable discriminator for transition-path failures, suitable
// for wire serialization without exposing handler internals.
type ErrorKind string

const (
	KindInstanceNotFound      ErrorKind = "instance_not_found"
	KindInstanceTerminal      ErrorKind = "instance_terminal"
	KindInvalidTransition     ErrorKind = "invalid_transition"
	KindRoleNotAuthorized     ErrorKind = "role_not_authorized"
	KindGuardNotSatisfied     ErrorKind = "guard_not_satisfied"
	KindHandlerExecution      ErrorKind = "handler_execution"
	KindHandlerNotRegistered  ErrorKind = "handler_not_registered"
	KindDuplicateRegistration ErrorKind = "duplicate_registration"
	KindInternal              ErrorKind = "internal"
)

// InstanceTerminalError rejects actions against an instance that already
// reached a terminal stage.
type InstanceTerminalError struct {
	ID    string
	Stage Stage
}

func (e *InstanceTerminalError) Error() string {
	return fmt.Sprintf("instance %s is terminal at stage %s", e.ID, e.Stage)
}

// InvalidTransitionError means no graph rule matches (currentStage, action).
type InvalidTransitionError struct {
	From   Stage
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("no transition for action %s from stage %s", e.Action, e.From)
}

// RoleNotAuthorizedError means the actor's role does not satisfy the rule.
type RoleNotAuthorizedError struct {
	From     Stage
	Action   Action
	Required Role
	Actual   Role
}

func (e *RoleNotAuthorizedError) Error() string {
	return fmt.Sprintf("role %s not authorized for action %s at stage %s (requires %s)",
		e.Actual, e.Action, e.From, e.Required)
}

// GuardNotSatisfiedError means the rule's guard predicate rejected the payload.
type GuardNotSatisfiedError struct {
	From   Stage
	Action Action
	Guard  string
}

func (e *GuardNotSatisfiedError) Error() string {
	return fmt.Sprintf("guard %q not satisfied for action %s at stage %s", e.Guard, e.Action, e.From)
}

// HandlerExecutionError wraps a handler failure or timeout. The transition
// is rejected and no instance state changes.
type HandlerExecutionError struct {
	Stage  Stage
	Action Action
	Cause  error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler for (%s, %s) failed: %v", e.Stage, e.Action, e.Cause)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Cause }

// HandlerNotRegisteredError surfaces a graph rule with no registered handler.
// This is a configuration defect, not a runtime condition of the instance.
type HandlerNotRegisteredError struct {
	Stage  Stage
	Action Action
}

func (e *HandlerNotRegisteredError) Error() string {
	return fmt.Sprintf("no handler registered for (%s, %s)", e.Stage, e.Action)
}

// DuplicateRegistrationError is a startup-time programming error: the same
// (stage, action) pair was registered twice.
type DuplicateRegistrationError struct {
	Stage  Stage
	Action Action
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("handler for (%s, %s) already registered", e.Stage, e.Action)
}

// KindOf maps an error from the transition path to its stable kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		terminal   *InstanceTerminalError
		invalid    *InvalidTransitionError
		role       *RoleNotAuthorizedError
		guard      *GuardNotSatisfiedError
		handler    *HandlerExecutionError
		unhandled  *HandlerNotRegisteredError
		duplicated *DuplicateRegistrationError
	)
	switch {
	case errors.Is(err, ErrInstanceNotFound):
		return KindInstanceNotFound
	case errors.As(err, &terminal):
		return KindInstanceTerminal
	case errors.As(err, &invalid):
		return KindInvalidTransition
	case errors.As(err, &role):
		return KindRoleNotAuthorized
	case errors.As(err, &guard):
		return KindGuardNotSatisfied
	case errors.As(err, &handler):
		return KindHandlerExecution
	case errors.As(err, &unhandled):
		return KindHandlerNotRegistered
	case errors.As(err, &duplicated):
		return KindDuplicateRegistration
	default:
		return KindInternal
	}
}
