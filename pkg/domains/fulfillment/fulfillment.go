// Package fulfillment registers the handlers for packaging, shipping and
// invoicing: PACK through the ANALYTICS terminal. Carrier booking and
// invoice math live outside the orchestrator core; these handlers stamp the
// fulfillment facts the rest of the pipeline relies on.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/registry"
)

// Register wires the fulfillment handlers into the registrar.
func Register(r registry.Registrar) error {
	steps := []struct {
		stage   domain.Stage
		action  domain.Action
		handler registry.Handler
	}{
		{domain.StagePack, graph.ActionDispatch, dispatch},
		{domain.StageShip, graph.ActionDeliver, deliver},
		{domain.StageInvoice, graph.ActionSettle, settle},
	}
	for _, s := range steps {
		if err := r.Register(s.stage, s.action, s.handler); err != nil {
			return err
		}
	}
	return nil
}

func dispatch(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	carrier, _ := payload["carrier"].(string)
	if carrier == "" {
		return registry.Result{}, fmt.Errorf("carrier is required to dispatch")
	}
	delta := map[string]any{
		"carrier":       carrier,
		"dispatched_at": time.Now().UTC().Format(time.RFC3339),
	}
	if tracking, ok := payload["tracking_number"]; ok {
		delta["tracking_number"] = tracking
	}
	return registry.Result{Delta: delta}, nil
}

func deliver(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"delivered_at": time.Now().UTC().Format(time.RFC3339),
	}
	if pod, ok := payload["proof_of_delivery"]; ok {
		delta["proof_of_delivery"] = pod
	}
	return registry.Result{Delta: delta}, nil
}

func settle(ctx context.Context, snap domain.Snapshot, payload map[string]any) (registry.Result, error) {
	delta := map[string]any{
		"invoiced_at": time.Now().UTC().Format(time.RFC3339),
	}
	// The invoice total defaults to the accepted quote; a corrected total
	// may be submitted with the action.
	if total, ok := payload["invoice_total"]; ok {
		delta["invoice_total"] = total
	} else if total, ok := snap.Payload["quote_total"]; ok {
		delta["invoice_total"] = total
	}
	return registry.Result{Delta: delta}, nil
}
