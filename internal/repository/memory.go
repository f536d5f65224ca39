package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shenikar/accident_alert_system/internal/models"
)

// MemoryStore - хранилище в памяти процесса (STORAGE_DRIVER=memory).
// It implements the device, incident and notification repositories.
type MemoryStore struct {
	mu          sync.RWMutex
	devices     map[string]*models.Device
	deviceSeq   int64
	incidents   []*models.Incident
	incidentSeq int64
	attempts    map[int64][]*models.NotificationAttempt
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  make(map[string]*models.Device),
		attempts: make(map[int64][]*models.NotificationAttempt),
		now:      time.Now,
	}
}

// ResolveOrCreate возвращает устройство по идентификатору, создавая его при первом появлении.
// Check and insert happen under the write lock, so first sightings are serialized.
func (s *MemoryStore) ResolveOrCreate(ctx context.Context, identifier string) (*models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to resolve device: %w", err)
	}

	s.mu.RLock()
	device, ok := s.devices[identifier]
	s.mu.RUnlock()
	if ok {
		return cloneDevice(device), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if device, ok := s.devices[identifier]; ok {
		return cloneDevice(device), nil
	}
	s.deviceSeq++
	device = &models.Device{
		ID:         s.deviceSeq,
		Identifier: identifier,
		Name:       identifier,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}
	s.devices[identifier] = device
	return cloneDevice(device), nil
}

func (s *MemoryStore) ListDevices(ctx context.Context) ([]*models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]*models.Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, cloneDevice(device))
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (s *MemoryStore) SetActive(ctx context.Context, identifier string, active bool) (*models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to update device: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[identifier]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", identifier, models.ErrDeviceNotFound)
	}
	device.Active = active
	return cloneDevice(device), nil
}

// Append присваивает инциденту следующий идентификатор и сохраняет его
func (s *MemoryStore) Append(ctx context.Context, device *models.Device, draft *models.IncidentDraft) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}
	incident := models.NewIncident(device, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[device.Identifier]; !ok {
		return nil, fmt.Errorf("failed to create incident: device %q: %w", device.Identifier, models.ErrDeviceNotFound)
	}
	s.incidentSeq++
	incident.ID = s.incidentSeq
	incident.CreatedAt = s.now().UTC()
	s.incidents = append(s.incidents, incident)

	stored := *incident
	return &stored, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ids are dense and ascending
	idx := sort.Search(len(s.incidents), func(i int) bool { return s.incidents[i].ID >= id })
	if idx == len(s.incidents) || s.incidents[idx].ID != id {
		return nil, fmt.Errorf("incident with id %d: %w", id, models.ErrIncidentNotFound)
	}
	incident := *s.incidents[idx]
	return &incident, nil
}

func (s *MemoryStore) ListIncidents(ctx context.Context, status *models.Status) ([]*models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	incidents := make([]*models.Incident, 0, len(s.incidents))
	for _, stored := range s.incidents {
		if status != nil && stored.Status != *status {
			continue
		}
		incident := *stored
		incidents = append(incidents, &incident)
	}
	return incidents, nil
}

// The memory store has no separate cache.
func (s *MemoryStore) GetIncidentFromCache(context.Context, int64) (*models.Incident, error) {
	return nil, nil
}

func (s *MemoryStore) SetIncidentCache(context.Context, *models.Incident) error {
	return nil
}

func (s *MemoryStore) SaveAttempt(ctx context.Context, attempt *models.NotificationAttempt) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to save notification attempt: %w", err)
	}
	stored := *attempt
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.IncidentID] = append(s.attempts[attempt.IncidentID], &stored)
	return nil
}

func (s *MemoryStore) ListAttempts(ctx context.Context, incidentID int64) ([]*models.NotificationAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notification attempts: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempts := make([]*models.NotificationAttempt, 0, len(s.attempts[incidentID]))
	for _, stored := range s.attempts[incidentID] {
		attempt := *stored
		attempts = append(attempts, &attempt)
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		if !attempts[i].StartedAt.Equal(attempts[j].StartedAt) {
			return attempts[i].StartedAt.Before(attempts[j].StartedAt)
		}
		return attempts[i].Channel < attempts[j].Channel
	})
	return attempts, nil
}

func cloneDevice(device *models.Device) *models.Device {
	clone := *device
	return &clone
}
