package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/fieldsync/internal/observability/log"
)

// Resolution is a whole-record conflict resolution policy. One side is
// discarded entirely; there is no field-level merging.
type Resolution string

const (
	ResolutionClientWins Resolution = "client_wins"
	ResolutionServerWins Resolution = "server_wins"
)

// ParseResolution resolves a wire-level policy name.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case ResolutionClientWins, ResolutionServerWins:
		return Resolution(s), nil
	default:
		return "", ErrInvalidResolution
	}
}

// Resolver applies an explicit caller-selected policy to a previously
// flagged conflict. Stateless; both stores are injected.
type Resolver struct {
	entities EntityStore
	logs     SyncLogStore
	logger   log.Log
	now      func() time.Time
}

func NewResolver(entities EntityStore, logs SyncLogStore, logger log.Log) *Resolver {
	return &Resolver{
		entities: entities,
		logs:     logs,
		logger:   logger.With(log.String("component", "resolver")),
		now:      time.Now,
	}
}

// Resolve finalizes one conflict and returns the stored entity afterwards.
// client_wins overwrites the stored payload; server_wins leaves the store
// untouched. Either way the resolution action itself is audited with one
// sync log entry, so a no-op resolution is still visible in the trail.
// Resolving an ID with no stored row fails with ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, ownerID, recordID string, resolution Resolution, clientPayload Payload, deviceID string) (*Entity, error) {
	if kind != KindCalculationRecord && kind != KindParameterSet {
		return nil, ErrInvalidKind
	}
	if _, err := ParseResolution(string(resolution)); err != nil {
		return nil, err
	}

	current, err := r.entities.Get(ctx, kind, ownerID, recordID)
	if err != nil {
		_ = r.appendLog(ownerID, deviceID, SyncStatusFailed, err.Error())
		return nil, fmt.Errorf("resolve %s %q: %w", kind, recordID, err)
	}

	final := *current
	if resolution == ResolutionClientWins {
		final.Payload = clientPayload.Clone()
		final.UpdatedAt = r.now()
		final.OriginDeviceID = deviceID
		if err := r.entities.Upsert(ctx, final); err != nil {
			_ = r.appendLog(ownerID, deviceID, SyncStatusFailed, err.Error())
			return nil, fmt.Errorf("resolve %s %q: %w", kind, recordID, err)
		}
	}

	if err := r.appendLog(ownerID, deviceID, SyncStatusSuccess, ""); err != nil {
		return &final, fmt.Errorf("sync log append failed: %w", err)
	}

	r.logger.Info("conflict resolved",
		log.String("owner_id", ownerID),
		log.String("record_id", recordID),
		log.String("kind", kind.String()),
		log.String("resolution", string(resolution)))

	return &final, nil
}

func (r *Resolver) appendLog(ownerID, deviceID string, status SyncStatus, errMsg string) error {
	entry := LogEntry{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		DeviceID:     deviceID,
		SyncType:     SyncTypeUpload,
		RecordCount:  1,
		SyncTime:     r.now(),
		Status:       status,
		ErrorMessage: errMsg,
	}
	if err := r.logs.Append(context.Background(), entry); err != nil {
		r.logger.Error("failed to append resolution log entry",
			log.String("owner_id", ownerID),
			log.Error(err))
		return err
	}
	return nil
}
