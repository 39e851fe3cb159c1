package conveyor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conveyor "github.com/serviceops/conveyor"
	"github.com/serviceops/conveyor/pkg/advisory"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/domains/commercial"
	"github.com/serviceops/conveyor/pkg/domains/fulfillment"
	"github.com/serviceops/conveyor/pkg/domains/operations"
	"github.com/serviceops/conveyor/pkg/graph"
	"github.com/serviceops/conveyor/pkg/registry"
)

func newEngine(t *testing.T, opts ...conveyor.Option) *conveyor.Engine {
	t.Helper()

	eng, err := conveyor.New(graph.MustDefault(), opts...)
	require.NoError(t, err)

	for _, register := range []func(registry.Registrar) error{
		commercial.Register,
		operations.Register,
		fulfillment.Register,
	} {
		require.NoError(t, register(eng))
	}
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// Drives one instance through the entire default pipeline, LEAD to
// ANALYTICS, including a QC rejection round.
func TestEngine_FullPipeline(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	snap, err := eng.CreateInstance(ctx, domain.ChannelWeb, map[string]any{"customer": "acme"})
	require.NoError(t, err)
	id := snap.ID

	steps := []struct {
		action  domain.Action
		role    domain.Role
		payload map[string]any
		stage   domain.Stage
	}{
		{graph.ActionQualify, domain.RoleSales, map[string]any{"contact": "jo@acme.example"}, domain.StageRFQ},
		{graph.ActionEstimate, domain.RoleSales, map[string]any{"quote_total": 1250.0}, domain.StageQuote},
		{graph.ActionAccept, domain.RoleSales, map[string]any{"po_number": "PO-9"}, domain.StageOrder},
		{graph.ActionPlan, domain.RolePlanner, map[string]any{"work_center": "milling"}, domain.StagePlanning},
		{graph.ActionRelease, domain.RolePlanner, nil, domain.StageJob},
		{graph.ActionStart, domain.RoleOperator, nil, domain.StageShopFloor},
		{graph.ActionInspect, domain.RoleOperator, nil, domain.StageQC},
		{graph.ActionReject, domain.RoleInspector, map[string]any{"defect": "surface finish"}, domain.StageShopFloor},
		{graph.ActionInspect, domain.RoleOperator, nil, domain.StageQC},
		{graph.ActionPass, domain.RoleInspector, nil, domain.StagePack},
		{graph.ActionDispatch, domain.RoleShipper, map[string]any{"carrier": "DHL"}, domain.StageShip},
		{graph.ActionDeliver, domain.RoleShipper, nil, domain.StageInvoice},
		{graph.ActionSettle, domain.RoleFinance, nil, domain.StageAnalytics},
	}

	for _, s := range steps {
		res, err := eng.SubmitAction(ctx, id, s.action, s.role, s.payload)
		require.NoError(t, err, "action %s", s.action)
		assert.Equal(t, s.stage, res.Snapshot.CurrentStage, "after %s", s.action)
	}

	final, err := eng.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.True(t, final.Terminated)
	assert.Equal(t, 1, final.Payload["rework_count"])
	assert.Equal(t, true, final.Payload["qc_passed"])
	assert.Equal(t, 1250.0, final.Payload["invoice_total"], "invoice defaults to the accepted quote")

	history, err := eng.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1+len(steps))
	for _, rec := range history {
		assert.Equal(t, domain.OutcomeCommitted, rec.Outcome)
	}
}

func TestEngine_CancelPath(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	snap, err := eng.CreateInstance(ctx, domain.ChannelPhone, nil)
	require.NoError(t, err)

	res, err := eng.SubmitAction(ctx, snap.ID, graph.ActionCancel, domain.RoleSales,
		map[string]any{"reason": "customer withdrew"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageCancelled, res.Snapshot.CurrentStage)
	assert.True(t, res.Snapshot.Terminated)
	assert.Equal(t, "customer withdrew", res.Snapshot.Payload["cancel_reason"])

	_, err = eng.SubmitAction(ctx, snap.ID, graph.ActionQualify, domain.RoleSales, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindInstanceTerminal, domain.KindOf(err))
}

func TestEngine_AcceptRequiresQuote(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	snap, _ := eng.CreateInstance(ctx, domain.ChannelWeb, nil)
	_, err := eng.SubmitAction(ctx, snap.ID, graph.ActionQualify, domain.RoleSales, nil)
	require.NoError(t, err)

	// ESTIMATE rejects without a total; the instance stays at RFQ.
	_, err = eng.SubmitAction(ctx, snap.ID, graph.ActionEstimate, domain.RoleSales, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindHandlerExecution, domain.KindOf(err))

	got, _ := eng.GetInstance(ctx, snap.ID)
	assert.Equal(t, domain.StageRFQ, got.CurrentStage)
}

func TestEngine_Expedite(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	snap, _ := eng.CreateInstance(ctx, domain.ChannelEDI, nil)
	for _, s := range []struct {
		action  domain.Action
		payload map[string]any
	}{
		{graph.ActionQualify, nil},
		{graph.ActionEstimate, map[string]any{"quote_total": 50.0}},
		{graph.ActionAccept, nil},
	} {
		_, err := eng.SubmitAction(ctx, snap.ID, s.action, domain.RoleSales, s.payload)
		require.NoError(t, err)
	}

	res, err := eng.SubmitAction(ctx, snap.ID, graph.ActionExpedite, domain.RoleSales,
		map[string]any{"priority": "HOT"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHot, res.Snapshot.Priority)
	assert.Equal(t, domain.StageOrder, res.Snapshot.CurrentStage)

	// Lowering priority through EXPEDITE is refused.
	_, err = eng.SubmitAction(ctx, snap.ID, graph.ActionExpedite, domain.RoleSales,
		map[string]any{"priority": "RUSH"})
	require.Error(t, err)
	assert.Equal(t, domain.KindHandlerExecution, domain.KindOf(err))
}

func TestEngine_StartValidatesRegistry(t *testing.T) {
	eng, err := conveyor.New(graph.MustDefault())
	require.NoError(t, err)
	require.NoError(t, commercial.Register(eng))
	// operations and fulfillment handlers missing.

	err = eng.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete registry")
	assert.Equal(t, domain.KindHandlerNotRegistered, domain.KindOf(err))
}

func TestEngine_RequiresStart(t *testing.T) {
	eng, err := conveyor.New(graph.MustDefault())
	require.NoError(t, err)

	_, err = eng.CreateInstance(context.Background(), domain.ChannelWeb, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestEngine_RegisterAfterStartFails(t *testing.T) {
	eng := newEngine(t)
	err := eng.Register(domain.StageLead, "EXTRA", func(_ context.Context, _ domain.Snapshot, _ map[string]any) (registry.Result, error) {
		return registry.Result{}, nil
	})
	require.Error(t, err)
}

func TestEngine_NilGraph(t *testing.T) {
	_, err := conveyor.New(nil)
	require.Error(t, err)
}

func TestEngine_AdvisorRecommendations(t *testing.T) {
	eng := newEngine(t, conveyor.WithAdvisor(advisory.NewHeuristic(24*time.Hour, 2)))
	ctx := context.Background()

	snap, err := eng.CreateInstance(ctx, domain.ChannelWeb, nil)
	require.NoError(t, err)

	// Two unauthorized attempts in a row push the rejected streak over the
	// heuristic's limit. Rejections flow to the advisor asynchronously.
	for i := 0; i < 2; i++ {
		_, err := eng.SubmitAction(ctx, snap.ID, graph.ActionQualify, domain.RoleGuest, nil)
		require.Error(t, err)
	}

	assert.Eventually(t, func() bool {
		recs, err := eng.Recommendations(ctx, snap.ID)
		return err == nil && len(recs) == 1
	}, time.Second, 10*time.Millisecond)

	recs, err := eng.Recommendations(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationRisk, recs[0].Kind)
}
