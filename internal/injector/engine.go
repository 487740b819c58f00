// Package injector assembles the sync engine from its stores via wire.
package injector

import (
	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
)

// Engine bundles the engine services with the stores they run on. The
// transport layer consumes this as a unit.
type Engine struct {
	Orchestrator *coresync.Orchestrator
	Coordinator  *coresync.Coordinator
	Resolver     *coresync.Resolver
	Entities     coresync.EntityStore
	Logs         coresync.SyncLogStore
}

func NewEngine(
	orchestrator *coresync.Orchestrator,
	coordinator *coresync.Coordinator,
	resolver *coresync.Resolver,
	entities coresync.EntityStore,
	logs coresync.SyncLogStore,
) *Engine {
	return &Engine{
		Orchestrator: orchestrator,
		Coordinator:  coordinator,
		Resolver:     resolver,
		Entities:     entities,
		Logs:         logs,
	}
}
