package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/notify"
	"github.com/shenikar/accident_alert_system/internal/repository"
	"github.com/shenikar/accident_alert_system/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelSender ведет себя по-разному для каждого получателя
type channelSender struct {
	mu    sync.Mutex
	sent  []notify.Message
	fail  map[string]error
	block map[string]bool
}

func (s *channelSender) Send(ctx context.Context, msg notify.Message) error {
	if s.block[msg.Recipient] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.fail[msg.Recipient]; err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

type pipeline struct {
	service    service.IncidentService
	store      *repository.MemoryStore
	dispatcher *notify.Dispatcher
}

func newPipeline(t *testing.T, sender notify.Sender, timeout time.Duration) *pipeline {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	store := repository.NewMemoryStore()
	dispatcher := notify.NewDispatcher(notify.DefaultChannels(sender, "police-desk", "er-desk"), store, timeout, logger)
	svc := service.NewIncidentService(store, store, store, dispatcher, nil, logger)
	return &pipeline{service: svc, store: store, dispatcher: dispatcher}
}

func intPtr(v int) *int { return &v }

func TestPipeline_CriticalIncident(t *testing.T) {
	sender := &channelSender{}
	p := newPipeline(t, sender, time.Second)
	ctx := context.Background()

	incident, err := p.service.IngestIncident(ctx, &models.RawIncident{
		DeviceID:      "cam_07",
		Timestamp:     "2024-01-01T10:00:00Z",
		Severity:      "CRITICAL",
		VictimCount:   intPtr(2),
		Location:      &models.Location{Lat: 28.6, Lng: 77.2},
		SnapshotRef:   "http://x/s.jpg",
		InjurySummary: "Victim 1: suspected spinal injury",
	})
	require.NoError(t, err)
	p.dispatcher.Wait()

	assert.Equal(t, models.StatusDetected, incident.Status)
	assert.Equal(t, models.SeverityCritical, incident.Severity)

	stored, err := p.service.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.ID, stored.ID)

	attempts, err := p.service.ListNotifications(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	byChannel := map[models.Channel]*models.NotificationAttempt{}
	for _, a := range attempts {
		byChannel[a.Channel] = a
		assert.Equal(t, models.OutcomeDelivered, a.Outcome)
		assert.Equal(t, incident.ID, a.IncidentID)
	}
	require.Contains(t, byChannel, models.ChannelPolice)
	require.Contains(t, byChannel, models.ChannelHospital)

	assert.Contains(t, byChannel[models.ChannelHospital].Body, "suspected spinal injury")
	assert.NotContains(t, byChannel[models.ChannelPolice].Body, "suspected spinal injury")
	assert.Contains(t, byChannel[models.ChannelPolice].Body, "https://www.google.com/maps?q=28.6,77.2")
	assert.Contains(t, byChannel[models.ChannelPolice].Body, "http://x/s.jpg")
}

func TestPipeline_UnknownSeverity_NoAlerts(t *testing.T) {
	sender := &channelSender{}
	p := newPipeline(t, sender, time.Second)
	ctx := context.Background()

	incident, err := p.service.IngestIncident(ctx, &models.RawIncident{
		DeviceID:  "cam_07",
		Timestamp: "2024-01-01T10:00:00Z",
		Severity:  "unknown_value",
	})
	require.NoError(t, err)
	p.dispatcher.Wait()

	assert.Equal(t, models.SeverityMinor, incident.Severity)
	attempts, err := p.service.ListNotifications(ctx, incident.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.Empty(t, sender.sent)
}

func TestPipeline_AlertThreshold(t *testing.T) {
	tests := []struct {
		severity string
		attempts int
	}{
		{"MINOR", 0},
		{"MEDIUM", 0},
		{"MAJOR", 2},
		{"CRITICAL", 2},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			p := newPipeline(t, &channelSender{}, time.Second)
			ctx := context.Background()

			incident, err := p.service.IngestIncident(ctx, &models.RawIncident{DeviceID: "cam", Severity: tt.severity})
			require.NoError(t, err)
			p.dispatcher.Wait()

			attempts, err := p.service.ListNotifications(ctx, incident.ID)
			require.NoError(t, err)
			assert.Len(t, attempts, tt.attempts)
		})
	}
}

func TestPipeline_MalformedTimestampUsesReceiveTime(t *testing.T) {
	p := newPipeline(t, &channelSender{}, time.Second)

	before := time.Now().UTC()
	incident, err := p.service.IngestIncident(context.Background(), &models.RawIncident{
		DeviceID:  "cam",
		Timestamp: "01/01/2024 10:00",
		Severity:  "MINOR",
	})
	after := time.Now().UTC()

	require.NoError(t, err)
	assert.True(t, incident.TimestampFallback)
	assert.False(t, incident.Timestamp.Before(before))
	assert.False(t, incident.Timestamp.After(after))
}

func TestPipeline_ConcurrentFirstSighting(t *testing.T) {
	p := newPipeline(t, &channelSender{}, time.Second)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := p.service.IngestIncident(ctx, &models.RawIncident{DeviceID: "cam_new", Severity: "MINOR"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	devices, err := p.store.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	incidents, err := p.service.ListIncidents(ctx, "")
	require.NoError(t, err)
	require.Len(t, incidents, n)
	for _, incident := range incidents {
		assert.Equal(t, devices[0].ID, incident.DeviceID)
	}
}

func TestPipeline_SequentialIDsIncrease(t *testing.T) {
	p := newPipeline(t, &channelSender{}, time.Second)
	ctx := context.Background()

	var created []int64
	for i := 0; i < 10; i++ {
		incident, err := p.service.IngestIncident(ctx, &models.RawIncident{DeviceID: fmt.Sprintf("cam_%d", i%3), Severity: "MEDIUM"})
		require.NoError(t, err)
		created = append(created, incident.ID)
	}

	incidents, err := p.service.ListIncidents(ctx, "")
	require.NoError(t, err)
	require.Len(t, incidents, 10)
	for i, incident := range incidents {
		assert.Equal(t, created[i], incident.ID)
		if i > 0 {
			assert.Greater(t, incident.ID, incidents[i-1].ID)
		}
	}
}

func TestPipeline_ChannelFailureIsIsolated(t *testing.T) {
	sender := &channelSender{fail: map[string]error{"police-desk": errors.New("gateway unreachable")}}
	p := newPipeline(t, sender, time.Second)
	ctx := context.Background()

	incident, err := p.service.IngestIncident(ctx, &models.RawIncident{DeviceID: "cam", Severity: "MAJOR"})
	require.NoError(t, err)
	p.dispatcher.Wait()

	attempts, err := p.service.ListNotifications(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		switch a.Channel {
		case models.ChannelPolice:
			assert.Equal(t, models.OutcomeFailed, a.Outcome)
			assert.Contains(t, a.Error, "gateway unreachable")
		case models.ChannelHospital:
			assert.Equal(t, models.OutcomeDelivered, a.Outcome)
			assert.Empty(t, a.Error)
		}
	}
}

func TestPipeline_SlowChannelDoesNotBlockIngestOrSibling(t *testing.T) {
	sender := &channelSender{block: map[string]bool{"er-desk": true}}
	p := newPipeline(t, sender, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	incident, err := p.service.IngestIncident(ctx, &models.RawIncident{DeviceID: "cam", Severity: "CRITICAL"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	p.dispatcher.Wait()

	attempts, err := p.service.ListNotifications(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		switch a.Channel {
		case models.ChannelPolice:
			assert.Equal(t, models.OutcomeDelivered, a.Outcome)
		case models.ChannelHospital:
			assert.Equal(t, models.OutcomeFailed, a.Outcome)
			assert.True(t, strings.Contains(a.Error, "timed out"), a.Error)
		}
	}
}
