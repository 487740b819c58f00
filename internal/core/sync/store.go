package sync

import (
	"context"
	"time"
)

// EntityStore is the durable keyed storage consumed by the engine. Rows are
// keyed by (kind, ownerID, id); Upsert must apply with single-row atomicity.
// Implementations return ErrNotFound (possibly wrapped) from Get when no row
// exists.
type EntityStore interface {
	Get(ctx context.Context, kind Kind, ownerID, id string) (*Entity, error)
	Upsert(ctx context.Context, e Entity) error

	// UpdatedSince returns every entity of the given kind and owner whose
	// UpdatedAt is strictly after since, ordered by UpdatedAt then ID.
	// A nil since returns the full collection.
	UpdatedSince(ctx context.Context, kind Kind, ownerID string, since *time.Time) ([]Entity, error)
}

// LogFilter narrows and pages a sync log query. DeviceID is optional;
// Page is 1-based.
type LogFilter struct {
	OwnerID  string
	DeviceID string
	Page     int
	PageSize int
}

// SyncLogStore is the append-only audit trail. Entries are never mutated
// or deleted by the engine.
type SyncLogStore interface {
	Append(ctx context.Context, entry LogEntry) error

	// List returns one page of entries matching the filter, newest first,
	// along with the total number of matching entries.
	List(ctx context.Context, f LogFilter) ([]LogEntry, int64, error)
}
