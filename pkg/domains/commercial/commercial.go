// Package commercial registers the handlers for the intake and quoting
// stages: LEAD, RFQ, QUOTE and ORDER. The handlers stamp commercial facts
// into the payload; pricing math itself lives outside the orchestrator core.
package commercial

import (
	"context"
	"fmt"
	"time"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/registry"
)

// Register wires the commercial handlers into the registrar.
func Register(r registry.Registrar) error {
	steps := []struct {
		stage   domain.Stage
		action  domain.Action
		handler registry.Handler
	}{
		{domain.StageLead, graph.ActionQualify, qualify},
		{domain.StageRFQ, graph.ActionEstimate, estimate},
		{domain.StageQuote, graph.ActionAccept, accept},
		{domain.StageLead, graph.ActionCancel, cancel},
		{domain.StageRFQ, graph.ActionCancel, cancel},
		{domain.StageQuote, graph.ActionCancel, cancel},
		{domain.StageOrder, graph.ActionCancel, cancel},
		{domain.StageOrder, graph.ActionExpedite, expedite},
	}
	for _, s := range steps {
		if err := r.Register(s.stage, s.action, s.handler); err != nil {
			return err
		}
	}
	return nil
}

func qualify(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"qualified_at": time.Now().UTC().Format(time.RFC3339),
	}
	if contact, ok := payload["contact"]; ok {
		delta["contact"] = contact
	}
	if notes, ok := payload["notes"]; ok {
		delta["qualification_notes"] = notes
	}
	return registry.Result{Delta: delta}, nil
}

func estimate(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	total, ok := payload["quote_total"]
	if !ok {
		return registry.Result{}, fmt.Errorf("quote_total is required to estimate")
	}
	delta := map[string]any{
		"quote_total": total,
		"quoted_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if validity, ok := payload["valid_until"]; ok {
		delta["valid_until"] = validity
	}
	return registry.Result{Delta: delta}, nil
}

func accept(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"quote_accepted": true,
		"accepted_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if po, ok := payload["po_number"]; ok {
		delta["po_number"] = po
	}
	return registry.Result{Delta: delta}, nil
}

func cancel(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	}
	if reason, ok := payload["reason"]; ok {
		delta["cancel_reason"] = reason
	}
	return registry.Result{Delta: delta}, nil
}

// expedite bumps priority through an explicit action; this is the only path
// by which priority changes, advisory suggestions included.
func expedite(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	target := domain.PriorityRush
	if label, ok := payload["priority"].(string); ok {
		target = domain.ParsePriority(label)
	}
	if target <= snap.Priority {
		return registry.Result{}, fmt.Errorf("priority %s does not raise current %s", target, snap.Priority)
	}
	return registry.Result{
		Delta:    map[string]any{"expedited_at": time.Now().UTC().Format(time.RFC3339)},
		Priority: &target,
	}, nil
}
