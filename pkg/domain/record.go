package domain

import "time"

// Outcome classifies a transition attempt in the audit trail.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
)

// TransitionRecord is one entry in an instance's audit trail.
// Records are appended by the orchestrator and never edited afterwards.
type TransitionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Action    Action    `json:"action"`
	ActorRole Role      `json:"actor_role"`
	Outcome   Outcome   `json:"outcome"`

	// Reason explains a rejection (empty for committed records).
	Reason string `json:"reason,omitempty"`
}

// TransitionResult is the success half of a transition outcome: the
// post-commit snapshot and the record that was appended. Failures travel as
// typed errors (see errors.go).
type TransitionResult struct {
	Snapshot Snapshot         `json:"snapshot"`
	Record   TransitionRecord `json:"record"`
}
