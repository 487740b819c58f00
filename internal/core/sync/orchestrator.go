package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/fieldsync/internal/observability/log"
)

// UploadFailure records one entity that could not be persisted. Failures
// are isolated: one bad entity never aborts the rest of the batch.
type UploadFailure struct {
	ID  string
	Err string
}

// Result is the outcome of one sync exchange for one entity kind.
type Result struct {
	// Accepted holds the uploads that were applied to the store.
	Accepted []Entity
	// Conflicts holds the server's current row for every upload that was
	// flagged as stale. The store was not mutated for these; the caller
	// resolves each via Resolver.Resolve.
	Conflicts []Entity
	// Failed holds uploads that hard-failed at the store.
	Failed []UploadFailure
	// Download holds the server entities updated since the client's last
	// sync, minus anything this device uploaded in this same call.
	Download []Entity
	Stats    Statistics
}

// Orchestrator executes one sync exchange for one entity kind. It is
// stateless; both stores are injected.
type Orchestrator struct {
	entities EntityStore
	logs     SyncLogStore
	logger   log.Log
	now      func() time.Time
}

func NewOrchestrator(entities EntityStore, logs SyncLogStore, logger log.Log) *Orchestrator {
	return &Orchestrator{
		entities: entities,
		logs:     logs,
		logger:   logger.With(log.String("component", "orchestrator")),
		now:      time.Now,
	}
}

// Sync processes one upload batch and computes the matching download set.
// Every invocation appends exactly one sync log entry; a run that hit a hard
// failure logs status=failed and never claims success for incomplete work.
// An empty upload batch is the common pure-download case.
func (o *Orchestrator) Sync(ctx context.Context, kind Kind, ownerID, deviceID string, lastSync *time.Time, uploads []Entity) (*Result, error) {
	res := &Result{}
	uploaded := make(map[string]struct{}, len(uploads))

	var hardErrs []string

	for _, e := range uploads {
		if err := ctx.Err(); err != nil {
			hardErrs = append(hardErrs, err.Error())
			_ = o.appendLog(ownerID, deviceID, uploads, res, hardErrs)
			return res, fmt.Errorf("sync aborted: %w", err)
		}

		e.OwnerID = ownerID
		e.Kind = kind

		current, err := o.entities.Get(ctx, kind, ownerID, e.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			res.Failed = append(res.Failed, UploadFailure{ID: e.ID, Err: err.Error()})
			hardErrs = append(hardErrs, fmt.Sprintf("%s: %v", e.ID, err))
			continue
		}

		switch Classify(e, current) {
		case ClassificationConflicting:
			res.Conflicts = append(res.Conflicts, *current)
			res.Stats.Conflicts++
			o.logger.Debug("upload conflicts with stored row",
				log.String("record_id", e.ID),
				log.String("kind", kind.String()))

		default:
			e.OriginDeviceID = deviceID
			if current != nil {
				// Creation time is immutable once a row exists.
				e.CreatedAt = current.CreatedAt
			} else if e.CreatedAt.IsZero() {
				e.CreatedAt = o.now()
			}
			if err := o.entities.Upsert(ctx, e); err != nil {
				res.Failed = append(res.Failed, UploadFailure{ID: e.ID, Err: err.Error()})
				hardErrs = append(hardErrs, fmt.Sprintf("%s: %v", e.ID, err))
				continue
			}
			res.Accepted = append(res.Accepted, e)
			res.Stats.Uploaded++
			uploaded[e.ID] = struct{}{}
		}
	}

	download, err := o.entities.UpdatedSince(ctx, kind, ownerID, lastSync)
	if err != nil {
		hardErrs = append(hardErrs, fmt.Sprintf("download query: %v", err))
		_ = o.appendLog(ownerID, deviceID, uploads, res, hardErrs)
		return res, fmt.Errorf("download query failed: %w", err)
	}
	for _, e := range download {
		// Never echo back what this device just sent.
		if _, own := uploaded[e.ID]; own {
			continue
		}
		res.Download = append(res.Download, e)
	}
	res.Stats.Downloaded = len(res.Download)

	if err := o.appendLog(ownerID, deviceID, uploads, res, hardErrs); err != nil {
		return res, fmt.Errorf("sync log append failed: %w", err)
	}

	if len(hardErrs) > 0 {
		return res, fmt.Errorf("partial failure: %d of %d uploads failed", len(res.Failed), len(uploads))
	}

	o.logger.Info("sync exchange completed",
		log.String("owner_id", ownerID),
		log.String("device_id", deviceID),
		log.String("kind", kind.String()),
		log.Int("uploaded", res.Stats.Uploaded),
		log.Int("downloaded", res.Stats.Downloaded),
		log.Int("conflicts", res.Stats.Conflicts))

	return res, nil
}

// appendLog writes the single audit entry for this invocation. An exchange
// that moved uploads logs as an upload, otherwise as a download; RecordCount
// is the total number of records moved in either direction.
func (o *Orchestrator) appendLog(ownerID, deviceID string, uploads []Entity, res *Result, hardErrs []string) error {
	entry := LogEntry{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		DeviceID:    deviceID,
		SyncType:    SyncTypeDownload,
		RecordCount: res.Stats.Uploaded + res.Stats.Downloaded,
		SyncTime:    o.now(),
		Status:      SyncStatusSuccess,
	}
	if len(uploads) > 0 {
		entry.SyncType = SyncTypeUpload
	}
	if len(hardErrs) > 0 {
		entry.Status = SyncStatusFailed
		entry.ErrorMessage = strings.Join(hardErrs, "; ")
	}

	if err := o.logs.Append(context.Background(), entry); err != nil {
		o.logger.Error("failed to append sync log entry",
			log.String("owner_id", ownerID),
			log.String("device_id", deviceID),
			log.Error(err))
		return err
	}
	return nil
}
