package domain

import "time"

// RecommendationKind categorizes advisory output.
type RecommendationKind string

const (
	RecommendationRisk     RecommendationKind = "risk_flag"
	RecommendationPriority RecommendationKind = "priority_suggestion"
	RecommendationAction   RecommendationKind = "suggested_action"
)

// Severity ranks a recommendation for display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Recommendation is advisory output attached to an instance. It is never
// authoritative: the orchestrator ignores it for correctness and operators
// act on it through explicit actions.
type Recommendation struct {
	Kind      RecommendationKind `json:"kind"`
	Severity  Severity           `json:"severity"`
	Message   string             `json:"message"`
	CreatedAt time.Time          `json:"created_at"`
}
