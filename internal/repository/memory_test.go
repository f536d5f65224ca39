package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraft(identifier string, severity models.Severity) *models.IncidentDraft {
	return &models.IncidentDraft{
		DeviceIdentifier: identifier,
		Timestamp:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Severity:         severity,
		RawSeverity:      string(severity),
		VictimCount:      1,
		Location:         models.Location{Lat: 55.75, Lng: 37.61},
		InjuryReport:     json.RawMessage(`[]`),
	}
}

func TestMemoryStore_ResolveOrCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "CAM-1", first.Name)
	assert.True(t, first.Active)

	again, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := store.ResolveOrCreate(ctx, "CAM-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMemoryStore_ResolveOrCreate_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 64
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			device, err := store.ResolveOrCreate(ctx, "CAM-RACE")
			if assert.NoError(t, err) {
				ids[i] = device.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	devices, err := store.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestMemoryStore_Append_MonotonicIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			identifier := fmt.Sprintf("CAM-%d", i%5)
			device, err := store.ResolveOrCreate(ctx, identifier)
			if !assert.NoError(t, err) {
				return
			}
			_, err = store.Append(ctx, device, testDraft(identifier, models.SeverityMinor))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	incidents, err := store.ListIncidents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, incidents, workers)
	for i := 1; i < len(incidents); i++ {
		assert.Greater(t, incidents[i].ID, incidents[i-1].ID)
	}
}

func TestMemoryStore_Append_UnknownDevice(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Append(context.Background(), &models.Device{ID: 7, Identifier: "ghost"}, testDraft("ghost", models.SeverityMinor))
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
}

func TestMemoryStore_GetByID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	device, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)
	created, err := store.Append(ctx, device, testDraft("CAM-1", models.SeverityMajor))
	require.NoError(t, err)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, models.StatusDetected, got.Status)
	assert.Equal(t, "CAM-1", got.DeviceName)

	_, err = store.GetByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, models.ErrIncidentNotFound)
}

func TestMemoryStore_ListIncidents_StatusFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	device, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)
	_, err = store.Append(ctx, device, testDraft("CAM-1", models.SeverityMinor))
	require.NoError(t, err)

	detected := models.StatusDetected
	incidents, err := store.ListIncidents(ctx, &detected)
	require.NoError(t, err)
	assert.Len(t, incidents, 1)

	resolved := models.StatusResolved
	incidents, err = store.ListIncidents(ctx, &resolved)
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestMemoryStore_SetActive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)

	device, err := store.SetActive(ctx, "CAM-1", false)
	require.NoError(t, err)
	assert.False(t, device.Active)

	resolved, err := store.ResolveOrCreate(ctx, "CAM-1")
	require.NoError(t, err)
	assert.False(t, resolved.Active)

	_, err = store.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
}

func TestMemoryStore_Attempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveAttempt(ctx, &models.NotificationAttempt{
		ID: uuid.New(), IncidentID: 1, Channel: models.ChannelPolice, Outcome: models.OutcomeDelivered, StartedAt: started,
	}))
	require.NoError(t, store.SaveAttempt(ctx, &models.NotificationAttempt{
		ID: uuid.New(), IncidentID: 1, Channel: models.ChannelHospital, Outcome: models.OutcomeFailed, StartedAt: started,
	}))
	require.NoError(t, store.SaveAttempt(ctx, &models.NotificationAttempt{
		ID: uuid.New(), IncidentID: 2, Channel: models.ChannelPolice, Outcome: models.OutcomeDelivered, StartedAt: started,
	}))

	attempts, err := store.ListAttempts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, models.ChannelHospital, attempts[0].Channel)
	assert.Equal(t, models.ChannelPolice, attempts[1].Channel)

	attempts, err = store.ListAttempts(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestMemoryStore_CacheIsNoop(t *testing.T) {
	store := NewMemoryStore()

	cached, err := store.GetIncidentFromCache(context.Background(), 1)
	assert.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, store.SetIncidentCache(context.Background(), &models.Incident{ID: 1}))
}
