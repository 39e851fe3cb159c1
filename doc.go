/*
Package conveyor is a pipeline orchestrator for service-center operations.

It drives a unit of business work (a lead, RFQ, quote or order) through an
ordered graph of named stages, enforcing which role may trigger each
transition, recording a full audit trail, and delegating the actual domain
work to handlers registered per (stage, action) pair.

Basic usage:

	g := graph.MustDefault()
	eng, err := conveyor.New(g)
	if err != nil { ... }

	commercial.Register(eng)
	operations.Register(eng)
	fulfillment.Register(eng)

	if err := eng.Start(); err != nil { ... }

	snap, err := eng.CreateInstance(ctx, domain.ChannelWeb, map[string]any{"customer": "Acme"})
	res, err := eng.SubmitAction(ctx, snap.ID, graph.ActionQualify, domain.RoleSales, nil)

Transitions either commit atomically or reject with a typed error; rejected
attempts are still appended to the instance history for audit. An advisory
decision engine can be wired via WithAdvisor; its output is strictly
best-effort and never blocks a commit.
*/
package conveyor
