package graph

import "github.com/serviceops/conveyor/pkg/domain"

// Action names of the default service-center graph.
const (
	ActionQualify  domain.Action = "QUALIFY"
	ActionEstimate domain.Action = "ESTIMATE"
	ActionAccept   domain.Action = "ACCEPT"
	ActionPlan     domain.Action = "PLAN"
	ActionRelease  domain.Action = "RELEASE"
	ActionStart    domain.Action = "START"
	ActionInspect  domain.Action = "INSPECT"
	ActionPass     domain.Action = "PASS"
	ActionReject   domain.Action = "REJECT"
	ActionDispatch domain.Action = "DISPATCH"
	ActionDeliver  domain.Action = "DELIVER"
	ActionSettle   domain.Action = "SETTLE"
	ActionCancel   domain.Action = "CANCEL"
	ActionExpedite domain.Action = "EXPEDITE"
)

// PayloadHas guards on the presence of a payload key.
func PayloadHas(key string) Guard {
	return Guard{
		Name: "has:" + key,
		Check: func(payload map[string]any) bool {
			_, ok := payload[key]
			return ok
		},
	}
}

// PayloadTrue guards on a payload key holding boolean true.
func PayloadTrue(key string) Guard {
	return Guard{
		Name: "true:" + key,
		Check: func(payload map[string]any) bool {
			v, ok := payload[key].(bool)
			return ok && v
		},
	}
}

// Default declares the canonical service-center pipeline: intake through
// quoting, planning, shop floor, quality control, fulfillment and invoicing,
// with a QC reject loop and a cancellation path out of the commercial stages.
func Default() (*Graph, error) {
	return NewBuilder(domain.StageLead).
		Terminal(domain.StageAnalytics, domain.StageCancelled).
		// Commercial
		Rule(domain.StageLead, ActionQualify, domain.StageRFQ, domain.RoleSales).
		Rule(domain.StageLead, ActionCancel, domain.StageCancelled, domain.RoleSales).
		Rule(domain.StageRFQ, ActionEstimate, domain.StageQuote, domain.RoleSales).
		Rule(domain.StageRFQ, ActionCancel, domain.StageCancelled, domain.RoleSales).
		GuardedRule(domain.StageQuote, ActionAccept, domain.StageOrder, domain.RoleSales, PayloadHas("quote_total")).
		Rule(domain.StageQuote, ActionCancel, domain.StageCancelled, domain.RoleSales).
		Rule(domain.StageOrder, ActionCancel, domain.StageCancelled, domain.RoleSales).
		Rule(domain.StageOrder, ActionExpedite, domain.StageOrder, domain.RoleSales).
		// Operations
		Rule(domain.StageOrder, ActionPlan, domain.StagePlanning, domain.RolePlanner).
		Rule(domain.StagePlanning, ActionRelease, domain.StageJob, domain.RolePlanner).
		Rule(domain.StageJob, ActionStart, domain.StageShopFloor, domain.RoleOperator).
		Rule(domain.StageShopFloor, ActionInspect, domain.StageQC, domain.RoleOperator).
		Rule(domain.StageQC, ActionPass, domain.StagePack, domain.RoleInspector).
		Rule(domain.StageQC, ActionReject, domain.StageShopFloor, domain.RoleInspector).
		// Fulfillment
		GuardedRule(domain.StagePack, ActionDispatch, domain.StageShip, domain.RoleShipper, PayloadTrue("qc_passed")).
		Rule(domain.StageShip, ActionDeliver, domain.StageInvoice, domain.RoleShipper).
		Rule(domain.StageInvoice, ActionSettle, domain.StageAnalytics, domain.RoleFinance).
		Build()
}

// MustDefault is Default for wiring paths where a construction failure is a
// programming error.
func MustDefault() *Graph {
	g, err := Default()
	if err != nil {
		panic(err)
	}
	return g
}
