package sync

import "time"

// SyncType labels the direction of a logged exchange.
type SyncType string

const (
	SyncTypeUpload   SyncType = "upload"
	SyncTypeDownload SyncType = "download"
	SyncTypeBatch    SyncType = "batch"
)

// SyncStatus records whether a logged exchange completed cleanly.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// LogEntry is one immutable row of the sync audit trail, created exactly
// once per engine invocation.
type LogEntry struct {
	ID           string
	OwnerID      string
	DeviceID     string
	SyncType     SyncType
	RecordCount  int
	SyncTime     time.Time
	Status       SyncStatus
	ErrorMessage string
}
