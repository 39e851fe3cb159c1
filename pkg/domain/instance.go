package domain

import "time"

// Instance is the mutable record of one unit of work moving through the
// pipeline. It is owned exclusively by the orchestrator: everything outside
// the commit path sees it through Snapshot copies.
type Instance struct {
	// ID is unique, assigned at creation, immutable.
	ID string `json:"id"`

	// CurrentStage changes only through a committed transition.
	CurrentStage Stage `json:"current_stage"`

	// Origin is the intake channel. Immutable after creation.
	Origin Channel `json:"origin"`

	// Priority is a ranked scheduling hint, settable only via explicit
	// actions (advisory suggestions are never auto-applied).
	Priority Priority `json:"priority"`

	// Payload accumulates handler contributions across transitions.
	// Deltas are merged in, never replace the map wholesale.
	Payload map[string]any `json:"payload"`

	// History is the append-only audit trail.
	History []TransitionRecord `json:"history"`

	// Terminated is set once the instance reaches a terminal stage.
	// Terminal instances remain readable but reject further actions.
	Terminated bool `json:"terminated"`

	CreatedAt time.Time `json:"created_at"`
}

// NewInstance creates an instance at the given entry stage with a synthetic
// creation record, so History starts at length 1.
func NewInstance(id string, entry Stage, origin Channel, initial map[string]any) *Instance {
	now := time.Now().UTC()
	inst := &Instance{
		ID:           id,
		CurrentStage: entry,
		Origin:       origin,
		Priority:     PriorityNormal,
		Payload:      make(map[string]any, len(initial)),
		CreatedAt:    now,
	}
	for k, v := range initial {
		inst.Payload[k] = v
	}
	inst.History = append(inst.History, TransitionRecord{
		Timestamp: now,
		To:        entry,
		Action:    "CREATE",
		ActorRole: RoleSystem,
		Outcome:   OutcomeCommitted,
	})
	return inst
}

// MergePayload folds a handler delta into the accumulated payload.
// Later contributions win on key collision.
func (i *Instance) MergePayload(delta map[string]any) {
	if i.Payload == nil && len(delta) > 0 {
		i.Payload = make(map[string]any, len(delta))
	}
	for k, v := range delta {
		i.Payload[k] = v
	}
}

// Clone returns a deep copy of the instance. Stores rely on this to keep
// callers from mutating persisted state through shared maps.
func (i *Instance) Clone() *Instance {
	c := *i
	c.Payload = make(map[string]any, len(i.Payload))
	for k, v := range i.Payload {
		c.Payload[k] = v
	}
	c.History = make([]TransitionRecord, len(i.History))
	copy(c.History, i.History)
	return &c
}

// Snapshot is the read-only view handed to handlers and advisory consumers.
type Snapshot struct {
	ID           string         `json:"id"`
	CurrentStage Stage          `json:"current_stage"`
	Origin       Channel        `json:"origin"`
	Priority     Priority       `json:"priority"`
	Payload      map[string]any `json:"payload"`
	Terminated   bool           `json:"terminated"`
	CreatedAt    time.Time      `json:"created_at"`
	HistoryLen   int            `json:"history_len"`
}

// Snapshot produces a point-in-time copy. The payload map is copied so a
// handler cannot reach back into orchestrator-owned state.
func (i *Instance) Snapshot() Snapshot {
	payload := make(map[string]any, len(i.Payload))
	for k, v := range i.Payload {
		payload[k] = v
	}
	return Snapshot{
		ID:           i.ID,
		CurrentStage: i.CurrentStage,
		Origin:       i.Origin,
		Priority:     i.Priority,
		Payload:      payload,
		Terminated:   i.Terminated,
		CreatedAt:    i.CreatedAt,
		HistoryLen:   len(i.History),
	}
}
