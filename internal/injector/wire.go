//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/observability/log"
)

func InitializeEngine(entities coresync.EntityStore, logs coresync.SyncLogStore, logger log.Log) *Engine {
	wire.Build(
		coresync.NewOrchestrator,
		coresync.NewCoordinator,
		coresync.NewResolver,
		NewEngine,
	)
	return nil
}
