//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackhub/backend/libs/db"
	"trackhub/backend/services/tracking-service/internal/models"
)

const testDSNEnv = "TRACKHUB_TEST_DATABASE_URL"

func openTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	conn, err := db.NewPostgresDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewStore(conn)
	require.NoError(t, store.EnsureSchema(ctx))
	return store, conn
}

// testIMEI keeps rows of separate runs apart on a shared database.
func testIMEI() string {
	return "it-" + uuid.NewString()
}

func TestPostgresFindOrCreateDevice(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	imei := testIMEI()

	device, created, err := store.FindOrCreateDevice(ctx, imei, models.DefaultDeviceName(imei))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.DefaultDeviceName(imei), device.Name)
	assert.Nil(t, device.TenantID)

	again, created, err := store.FindOrCreateDevice(ctx, imei, "other name")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, device.ID, again.ID)
	assert.Equal(t, device.Name, again.Name)

	byID, err := store.FindDeviceByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, imei, byID.IMEI)

	_, err = store.FindDeviceByIMEI(ctx, testIMEI())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresFindOrCreateDeviceConcurrent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	imei := testIMEI()

	var wg sync.WaitGroup
	created := make(chan bool, 8)
	ids := make(chan int64, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			device, isNew, err := store.FindOrCreateDevice(ctx, imei, "x")
			if !assert.NoError(t, err) {
				return
			}
			created <- isNew
			ids <- device.ID
		}()
	}
	wg.Wait()
	close(created)
	close(ids)

	var newCount int
	for isNew := range created {
		if isNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
}

func TestPostgresPositionQueries(t *testing.T) {
	store, conn := openTestStore(t)
	ctx := context.Background()
	imei := testIMEI()

	device, _, err := store.FindOrCreateDevice(ctx, imei, "x")
	require.NoError(t, err)
	tenant := time.Now().UnixNano()
	_, err = conn.ExecContext(ctx, `UPDATE devices SET tenant_id = $1 WHERE id = $2`, tenant, device.ID)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 3; i++ {
		p := &models.Position{
			DeviceID:  device.ID,
			Latitude:  float64(i),
			Longitude: 36.8,
			Speed:     12.5,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Raw:       []byte(`{"text":"frame"}`),
		}
		require.NoError(t, store.AppendPosition(ctx, p))
		assert.NotZero(t, p.ID)
	}

	own := models.Scope{TenantID: tenant}
	latest, err := store.LatestPosition(ctx, imei, own)
	require.NoError(t, err)
	assert.Equal(t, 2.0, latest.Latitude)
	assert.JSONEq(t, `{"text":"frame"}`, string(latest.Raw))

	_, err = store.LatestPosition(ctx, imei, models.Scope{TenantID: tenant + 1})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListPositions(ctx, models.PositionFilter{Scope: own, DeviceID: device.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2.0, list[0].Latitude)

	all, err := store.ListPositions(ctx, models.PositionFilter{Scope: own, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// device ids beyond int4 must still bind as bigint
	none, err := store.ListPositions(ctx, models.PositionFilter{Scope: models.GlobalScope(), DeviceID: 1 << 40, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	snapshot, err := store.Snapshot(ctx, own)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, 2.0, snapshot[0].Latitude)

	between, err := store.PositionsBetween(ctx, device.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, between, 3)
	assert.Equal(t, 0.0, between[0].Latitude)

	from := base.Add(30 * time.Second)
	to := base.Add(90 * time.Second)
	window, err := store.PositionsBetween(ctx, device.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 1.0, window[0].Latitude)
}
