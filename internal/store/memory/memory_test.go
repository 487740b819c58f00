package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/store/memory"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func entity(id, owner string, kind coresync.Kind, updated time.Time) coresync.Entity {
	return coresync.Entity{
		ID: id, OwnerID: owner, Kind: kind,
		Payload:   coresync.Payload{"outerDiameter": 114.3},
		CreatedAt: t0, UpdatedAt: updated,
	}
}

func TestUpsertAndGet(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	e := entity("r1", "u1", coresync.KindCalculationRecord, t0)
	require.NoError(t, st.Upsert(ctx, e))

	got, err := st.Get(ctx, coresync.KindCalculationRecord, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	// Keys are scoped by kind and owner.
	_, err = st.Get(ctx, coresync.KindParameterSet, "u1", "r1")
	assert.ErrorIs(t, err, coresync.ErrNotFound)
	_, err = st.Get(ctx, coresync.KindCalculationRecord, "u2", "r1")
	assert.ErrorIs(t, err, coresync.ErrNotFound)
}

func TestUpdatedSinceFiltersAndOrders(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, entity("r1", "u1", coresync.KindCalculationRecord, t0)))
	require.NoError(t, st.Upsert(ctx, entity("r2", "u1", coresync.KindCalculationRecord, t0.Add(2*time.Minute))))
	require.NoError(t, st.Upsert(ctx, entity("r3", "u1", coresync.KindCalculationRecord, t0.Add(time.Minute))))
	require.NoError(t, st.Upsert(ctx, entity("x1", "u2", coresync.KindCalculationRecord, t0.Add(time.Hour))))

	all, err := st.UpdatedSince(ctx, coresync.KindCalculationRecord, "u1", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r1", "r3", "r2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	// The boundary is exclusive: rows at exactly `since` are not returned.
	since := t0.Add(time.Minute)
	newer, err := st.UpdatedSince(ctx, coresync.KindCalculationRecord, "u1", &since)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "r2", newer[0].ID)
}

func seedLogs(t *testing.T, st *memory.Store, n int, device string) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, st.Append(context.Background(), coresync.LogEntry{
			ID: fmt.Sprintf("%s-%d", device, i), OwnerID: "u1", DeviceID: device,
			SyncType: coresync.SyncTypeUpload, RecordCount: 1,
			SyncTime: t0.Add(time.Duration(i) * time.Minute),
			Status:   coresync.SyncStatusSuccess,
		}))
	}
}

func TestListLogsPaginatesNewestFirst(t *testing.T) {
	st := memory.New()
	seedLogs(t, st, 5, "device-a")
	seedLogs(t, st, 2, "device-b")

	page, total, err := st.List(context.Background(), coresync.LogFilter{
		OwnerID: "u1", Page: 1, PageSize: 3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, page, 3)
	assert.True(t, page[0].SyncTime.After(page[1].SyncTime) || page[0].SyncTime.Equal(page[1].SyncTime))

	last, total, err := st.List(context.Background(), coresync.LogFilter{
		OwnerID: "u1", Page: 3, PageSize: 3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Len(t, last, 1)

	beyond, _, err := st.List(context.Background(), coresync.LogFilter{
		OwnerID: "u1", Page: 9, PageSize: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestListLogsFiltersByDevice(t *testing.T) {
	st := memory.New()
	seedLogs(t, st, 3, "device-a")
	seedLogs(t, st, 2, "device-b")

	entries, total, err := st.List(context.Background(), coresync.LogFilter{
		OwnerID: "u1", DeviceID: "device-b",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, e := range entries {
		assert.Equal(t, "device-b", e.DeviceID)
	}
}
