// Package domain contains the core value types of the pipeline orchestrator:
// stages, roles, instances, transition records and the error taxonomy.
//
// Types here carry no behavior beyond copying and merging; all state
// transitions happen in the orchestrator, which is the sole writer of
// Instance state.
package domain
