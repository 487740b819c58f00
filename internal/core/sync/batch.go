package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fieldsync/fieldsync/internal/observability/log"
)

// KindResult pairs one kind's sync outcome with its error, if any.
type KindResult struct {
	Result *Result
	Err    error
}

// BatchResult is the combined outcome of one batch sync request.
type BatchResult struct {
	Calculations KindResult
	Parameters   KindResult
	Overall      Statistics
}

// Succeeded reports whether both sub-syncs completed without a hard failure.
func (b *BatchResult) Succeeded() bool {
	return b.Calculations.Err == nil && b.Parameters.Err == nil
}

// Coordinator runs the orchestrator once per entity kind inside a single
// client request. The two sub-syncs touch disjoint collections and are not
// transactionally linked: they run concurrently and a failure of one never
// aborts the other.
type Coordinator struct {
	orch   *Orchestrator
	logs   SyncLogStore
	logger log.Log
	now    func() time.Time
}

func NewCoordinator(orch *Orchestrator, logs SyncLogStore, logger log.Log) *Coordinator {
	return &Coordinator{
		orch:   orch,
		logs:   logs,
		logger: logger.With(log.String("component", "coordinator")),
		now:    time.Now,
	}
}

// BatchSync syncs calculation records and parameter sets in one exchange and
// aggregates the statistics additively. One batch-level audit entry is
// appended on top of the per-kind entries, regardless of outcome.
func (c *Coordinator) BatchSync(ctx context.Context, ownerID, deviceID string, lastSync *time.Time, calcs, params []Entity) *BatchResult {
	res := &BatchResult{}

	// Goroutines always return nil: errgroup is used for the fan-out and
	// join only, so one kind failing cannot cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		res.Calculations.Result, res.Calculations.Err = c.orch.Sync(ctx, KindCalculationRecord, ownerID, deviceID, lastSync, calcs)
		return nil
	})
	g.Go(func() error {
		res.Parameters.Result, res.Parameters.Err = c.orch.Sync(ctx, KindParameterSet, ownerID, deviceID, lastSync, params)
		return nil
	})
	_ = g.Wait()

	if res.Calculations.Result != nil {
		res.Overall = res.Overall.Add(res.Calculations.Result.Stats)
	}
	if res.Parameters.Result != nil {
		res.Overall = res.Overall.Add(res.Parameters.Result.Stats)
	}

	entry := LogEntry{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		DeviceID:    deviceID,
		SyncType:    SyncTypeBatch,
		RecordCount: res.Overall.Uploaded + res.Overall.Downloaded,
		SyncTime:    c.now(),
		Status:      SyncStatusSuccess,
	}
	if !res.Succeeded() {
		entry.Status = SyncStatusFailed
		entry.ErrorMessage = batchErrorMessage(res)
	}
	if err := c.logs.Append(context.Background(), entry); err != nil {
		c.logger.Error("failed to append batch log entry",
			log.String("owner_id", ownerID),
			log.String("device_id", deviceID),
			log.Error(err))
	}

	c.logger.Info("batch sync completed",
		log.String("owner_id", ownerID),
		log.String("device_id", deviceID),
		log.Bool("success", res.Succeeded()),
		log.Int("uploaded", res.Overall.Uploaded),
		log.Int("downloaded", res.Overall.Downloaded),
		log.Int("conflicts", res.Overall.Conflicts))

	return res
}

func batchErrorMessage(res *BatchResult) string {
	msg := ""
	if res.Calculations.Err != nil {
		msg = "calculation_records: " + res.Calculations.Err.Error()
	}
	if res.Parameters.Err != nil {
		if msg != "" {
			msg += "; "
		}
		msg += "parameter_sets: " + res.Parameters.Err.Error()
	}
	return msg
}
