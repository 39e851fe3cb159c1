// Package ports declares the interfaces through which the orchestrator core
// talks to its collaborators: instance persistence, distributed locking and
// the advisory decision engine. Concrete implementations live under
// pkg/adapters and pkg/advisory.
package ports
