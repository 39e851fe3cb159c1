package advisory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Heuristic is a small reference advisor. It watches transition outcomes and
// derives risk flags and priority suggestions from simple counters:
//
//   - consecutive rejections on an instance raise a risk flag
//   - instances older than the age threshold that are still pre-fulfillment
//     get a RUSH suggestion
//
// It exists so the advisory boundary is exercised end-to-end; production
// deployments plug in a real decision engine behind ports.Advisor.
type Heuristic struct {
	mu    sync.Mutex
	seen  map[string]*heuristicState
	aged  time.Duration
	limit int
}

type heuristicState struct {
	rejectedStreak int
	createdAt      time.Time
	lastStage      domain.Stage
}

// NewHeuristic creates the reference advisor. Instances older than maxAge
// attract a priority suggestion; rejectedLimit consecutive rejections raise
// a risk flag.
func NewHeuristic(maxAge time.Duration, rejectedLimit int) *Heuristic {
	if rejectedLimit <= 0 {
		rejectedLimit = 3
	}
	return &Heuristic{
		seen:  make(map[string]*heuristicState),
		aged:  maxAge,
		limit: rejectedLimit,
	}
}

// NotifyTransition updates the per-instance counters.
func (h *Heuristic) NotifyTransition(ctx context.Context, snap domain.Snapshot, rec domain.TransitionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.seen[snap.ID]
	if !ok {
		st = &heuristicState{createdAt: snap.CreatedAt}
		h.seen[snap.ID] = st
	}
	st.lastStage = snap.CurrentStage
	if rec.Outcome == domain.OutcomeRejected {
		st.rejectedStreak++
	} else {
		st.rejectedStreak = 0
	}
	return nil
}

// Recommendations derives the advisor's current output for an instance.
func (h *Heuristic) Recommendations(ctx context.Context, instanceID string) ([]domain.Recommendation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.seen[instanceID]
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	var recs []domain.Recommendation

	if st.rejectedStreak >= h.limit {
		recs = append(recs, domain.Recommendation{
			Kind:      domain.RecommendationRisk,
			Severity:  domain.SeverityWarning,
			Message:   fmt.Sprintf("%d consecutive rejected transitions; review stage %s", st.rejectedStreak, st.lastStage),
			CreatedAt: now,
		})
	}

	if h.aged > 0 && now.Sub(st.createdAt) > h.aged && !terminalish(st.lastStage) {
		recs = append(recs, domain.Recommendation{
			Kind:      domain.RecommendationPriority,
			Severity:  domain.SeverityInfo,
			Message:   fmt.Sprintf("instance open for %s; consider EXPEDITE", now.Sub(st.createdAt).Round(time.Minute)),
			CreatedAt: now,
		})
	}
	return recs, nil
}

func terminalish(s domain.Stage) bool {
	switch s {
	case domain.StageShip, domain.StageInvoice, domain.StageAnalytics, domain.StageCancelled:
		return true
	}
	return false
}
