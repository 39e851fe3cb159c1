// Package operations registers the handlers for planning, shop floor and
// quality control: ORDER through QC, including the QC reject loop back to
// the shop floor.
package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/registry"
)

// Register wires the operations handlers into the registrar.
func Register(r registry.Registrar) error {
	steps := []struct {
		stage   domain.Stage
		action  domain.Action
		handler registry.Handler
	}{
		{domain.StageOrder, graph.ActionPlan, plan},
		{domain.StagePlanning, graph.ActionRelease, release},
		{domain.StageJob, graph.ActionStart, start},
		{domain.StageShopFloor, graph.ActionInspect, inspect},
		{domain.StageQC, graph.ActionPass, pass},
		{domain.StageQC, graph.ActionReject, reject},
	}
	for _, s := range steps {
		if err := r.Register(s.stage, s.action, s.handler); err != nil {
			return err
		}
	}
	return nil
}

func plan(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"planned_at": time.Now().UTC().Format(time.RFC3339),
	}
	if wc, ok := payload["work_center"]; ok {
		delta["work_center"] = wc
	}
	if due, ok := payload["due_date"]; ok {
		delta["due_date"] = due
	}
	return registry.Result{Delta: delta}, nil
}

func release(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	jobNumber, ok := payload["job_number"].(string)
	if !ok || jobNumber == "" {
		// Derive a stable job number from the instance identity.
		jobNumber = "JOB-" + shortID(snap.ID)
	}
	return registry.Result{Delta: map[string]any{
		"job_number":  jobNumber,
		"released_at": time.Now().UTC().Format(time.RFC3339),
	}}, nil
}

func start(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"floor_started_at": time.Now().UTC().Format(time.RFC3339),
	}
	if op, ok := payload["operator"]; ok {
		delta["operator"] = op
	}
	return registry.Result{Delta: delta}, nil
}

func inspect(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"inspection_requested_at": time.Now().UTC().Format(time.RFC3339),
	}
	if m, ok := payload["measurements"]; ok {
		delta["measurements"] = m
	}
	return registry.Result{Delta: delta}, nil
}

func pass(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"qc_passed":     true,
		"qc_decided_at": time.Now().UTC().Format(time.RFC3339),
	}
	if insp, ok := payload["inspector"]; ok {
		delta["inspector"] = insp
	}
	return registry.Result{Delta: delta}, nil
}

// reject routes back to the shop floor via the graph rule and keeps count of
// rework rounds so repeated failures stay visible in the payload.
func reject(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	rounds := 1
	if prior, ok := snap.Payload["rework_count"].(int); ok {
		rounds = prior + 1
	} else if prior, ok := snap.Payload["rework_count"].(float64); ok {
		// JSON round-trips integers as float64.
		rounds = int(prior) + 1
	}
	delta := map[string]any{
		"qc_passed":     false,
		"rework_count":  rounds,
		"qc_decided_at": time.Now().UTC().Format(time.RFC3339),
	}
	if reason, ok := payload["defect"]; ok {
		delta["defect"] = reason
	}
	return registry.Result{Delta: delta}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return fmt.Sprintf("%d", time.Now().Unix())
	}
	return id
}
