package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/observability/log"
	"github.com/fieldsync/fieldsync/internal/store/memory"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*coresync.Orchestrator, *memory.Store) {
	t.Helper()
	st := memory.New()
	return coresync.NewOrchestrator(st, st, log.NewNop()), st
}

func record(id string, updated time.Time, payload coresync.Payload) coresync.Entity {
	return coresync.Entity{ID: id, Payload: payload, CreatedAt: updated, UpdatedAt: updated}
}

func TestSyncRoundTrip(t *testing.T) {
	orch, st := newEngine(t)
	ctx := context.Background()

	payload := coresync.Payload{"outerDiameter": 114.3}
	res, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil,
		[]coresync.Entity{record("r1", t0, payload)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Uploaded)
	assert.Equal(t, 0, res.Stats.Conflicts)

	// A second device pulling since before T0 sees the record.
	since := t0.Add(-time.Millisecond)
	res, err = orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-b", &since, nil)
	require.NoError(t, err)
	require.Len(t, res.Download, 1)
	assert.Equal(t, "r1", res.Download[0].ID)
	assert.Equal(t, payload.Digest(), res.Download[0].Payload.Digest())
	assert.Equal(t, "device-a", res.Download[0].OriginDeviceID)

	// And the store row is scoped to the owner.
	_, err = st.Get(ctx, coresync.KindCalculationRecord, "u2", "r1")
	assert.ErrorIs(t, err, coresync.ErrNotFound)
}

func TestSyncIdempotentReupload(t *testing.T) {
	orch, _ := newEngine(t)
	ctx := context.Background()

	e := record("r1", t0, coresync.Payload{"outerDiameter": 114.3})
	_, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil, []coresync.Entity{e})
	require.NoError(t, err)

	res, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil, []coresync.Entity{e})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.Conflicts)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, 1, res.Stats.Uploaded)
}

func TestSyncConflictDetection(t *testing.T) {
	orch, st := newEngine(t)
	ctx := context.Background()

	serverPayload := coresync.Payload{"outerDiameter": 168.3}
	t2 := t0.Add(time.Hour)
	require.NoError(t, st.Upsert(ctx, coresync.Entity{
		ID: "r1", OwnerID: "u1", Kind: coresync.KindCalculationRecord,
		Payload: serverPayload, CreatedAt: t0, UpdatedAt: t2, OriginDeviceID: "device-b",
	}))

	// Client submits state based on T1 < T2.
	stale := record("r1", t0.Add(time.Minute), coresync.Payload{"outerDiameter": 114.3})
	res, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil, []coresync.Entity{stale})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.Conflicts)
	assert.Equal(t, 0, res.Stats.Uploaded)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "r1", res.Conflicts[0].ID)
	assert.Equal(t, t2, res.Conflicts[0].UpdatedAt)

	// The stored row is untouched.
	current, err := st.Get(ctx, coresync.KindCalculationRecord, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, serverPayload.Digest(), current.Payload.Digest())
	assert.Equal(t, t2, current.UpdatedAt)
}

func TestSyncEmptyUploadIsPureDownload(t *testing.T) {
	orch, st := newEngine(t)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, coresync.Entity{
		ID: "r1", OwnerID: "u1", Kind: coresync.KindParameterSet,
		Payload: coresync.Payload{"name": "API 5L defaults", "isPreset": true},
		CreatedAt: t0, UpdatedAt: t0, OriginDeviceID: "device-b",
	}))

	res, err := orch.Sync(ctx, coresync.KindParameterSet, "u1", "device-a", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.Uploaded)
	assert.Equal(t, 1, res.Stats.Downloaded)
	require.Len(t, res.Download, 1)
	assert.Equal(t, "r1", res.Download[0].ID)

	// A pure download logs as a download.
	entries, total, err := st.List(ctx, coresync.LogFilter{OwnerID: "u1", DeviceID: "device-a"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, coresync.SyncTypeDownload, entries[0].SyncType)
	assert.Equal(t, coresync.SyncStatusSuccess, entries[0].Status)
	assert.Equal(t, 1, entries[0].RecordCount)
}

func TestSyncDoesNotEchoOwnUploads(t *testing.T) {
	orch, st := newEngine(t)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, coresync.Entity{
		ID: "r2", OwnerID: "u1", Kind: coresync.KindCalculationRecord,
		Payload: coresync.Payload{"outerDiameter": 219.1}, CreatedAt: t0, UpdatedAt: t0,
		OriginDeviceID: "device-b",
	}))

	res, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil,
		[]coresync.Entity{record("r1", t0.Add(time.Minute), coresync.Payload{"outerDiameter": 114.3})})
	require.NoError(t, err)

	// r1 was just uploaded by this device; only r2 comes back down.
	require.Len(t, res.Download, 1)
	assert.Equal(t, "r2", res.Download[0].ID)
	assert.Equal(t, 1, res.Stats.Downloaded)
}

func TestSyncAuditOnePerInvocation(t *testing.T) {
	orch, st := newEngine(t)
	ctx := context.Background()

	_, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil,
		[]coresync.Entity{record("r1", t0, coresync.Payload{"outerDiameter": 114.3})})
	require.NoError(t, err)
	_, err = orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil, nil)
	require.NoError(t, err)

	entries, total, err := st.List(ctx, coresync.LogFilter{OwnerID: "u1", DeviceID: "device-a"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	// Newest first: the pure download, then the upload.
	assert.Equal(t, coresync.SyncTypeDownload, entries[0].SyncType)
	assert.Equal(t, coresync.SyncTypeUpload, entries[1].SyncType)
	assert.Equal(t, 1, entries[1].RecordCount)
}

// failingStore wraps the memory store and fails upserts for one record id.
type failingStore struct {
	*memory.Store
	failID string
}

func (f *failingStore) Upsert(ctx context.Context, e coresync.Entity) error {
	if e.ID == f.failID {
		return errors.New("disk full")
	}
	return f.Store.Upsert(ctx, e)
}

func TestSyncIsolatesPerEntityFailures(t *testing.T) {
	st := memory.New()
	flaky := &failingStore{Store: st, failID: "r2"}
	orch := coresync.NewOrchestrator(flaky, st, log.NewNop())
	ctx := context.Background()

	res, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil, []coresync.Entity{
		record("r1", t0, coresync.Payload{"outerDiameter": 114.3}),
		record("r2", t0, coresync.Payload{"outerDiameter": 168.3}),
		record("r3", t0, coresync.Payload{"outerDiameter": 219.1}),
	})
	require.Error(t, err)

	// r1 and r3 made it; r2 is reported, not silently dropped.
	assert.Equal(t, 2, res.Stats.Uploaded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "r2", res.Failed[0].ID)

	entries, _, lerr := st.List(ctx, coresync.LogFilter{OwnerID: "u1"})
	require.NoError(t, lerr)
	require.Len(t, entries, 1)
	assert.Equal(t, coresync.SyncStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].ErrorMessage, "r2")
}

func TestSyncCancelledContextNeverLogsSuccess(t *testing.T) {
	orch, st := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Sync(ctx, coresync.KindCalculationRecord, "u1", "device-a", nil,
		[]coresync.Entity{record("r1", t0, coresync.Payload{"outerDiameter": 114.3})})
	require.Error(t, err)

	entries, _, lerr := st.List(context.Background(), coresync.LogFilter{OwnerID: "u1"})
	require.NoError(t, lerr)
	require.Len(t, entries, 1)
	assert.Equal(t, coresync.SyncStatusFailed, entries[0].Status)
}
