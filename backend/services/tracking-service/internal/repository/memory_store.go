package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"trackhub/backend/services/tracking-service/internal/models"
)

// MemoryStore keeps devices and positions in process memory. It backs local
// runs with database.driver=memory and the package tests.
type MemoryStore struct {
	mu         sync.RWMutex
	devices    map[int64]*models.Device
	byIMEI     map[string]int64
	positions  []models.Position
	nextDevice int64
	nextPos    int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[int64]*models.Device),
		byIMEI:  make(map[string]int64),
	}
}

// AddDevice registers a device the way the management API would.
func (s *MemoryStore) AddDevice(device models.Device) *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(device)
}

func (s *MemoryStore) addLocked(device models.Device) *models.Device {
	s.nextDevice++
	device.ID = s.nextDevice
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	stored := device
	s.devices[device.ID] = &stored
	s.byIMEI[device.IMEI] = device.ID
	return cloneDevice(&stored)
}

func (s *MemoryStore) FindDeviceByIMEI(_ context.Context, imei string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIMEI[imei]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDevice(s.devices[id]), nil
}

func (s *MemoryStore) FindDeviceByID(_ context.Context, id int64) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDevice(d), nil
}

func (s *MemoryStore) FindOrCreateDevice(_ context.Context, imei, name string) (*models.Device, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byIMEI[imei]; ok {
		return cloneDevice(s.devices[id]), false, nil
	}
	return s.addLocked(models.Device{IMEI: imei, Name: name}), true, nil
}

func (s *MemoryStore) AppendPosition(_ context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[p.DeviceID]; !ok {
		return ErrNotFound
	}
	s.nextPos++
	p.ID = s.nextPos
	s.positions = append(s.positions, *p)
	return nil
}

func (s *MemoryStore) LatestPosition(_ context.Context, imei string, scope models.Scope) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIMEI[imei]
	if !ok || !scope.Allows(s.devices[id]) {
		return nil, ErrNotFound
	}
	var latest *models.Position
	for i := range s.positions {
		p := &s.positions[i]
		if p.DeviceID == id && (latest == nil || newer(p, latest)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, filter models.PositionFilter) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Position
	for _, p := range s.positions {
		if filter.DeviceID != 0 && p.DeviceID != filter.DeviceID {
			continue
		}
		if !filter.Scope.Allows(s.devices[p.DeviceID]) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(&out[i], &out[j]) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, scope models.Scope) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[int64]models.Position)
	for _, p := range s.positions {
		if !scope.Allows(s.devices[p.DeviceID]) {
			continue
		}
		if cur, ok := latest[p.DeviceID]; !ok || newer(&p, &cur) {
			latest[p.DeviceID] = p
		}
	}
	out := make([]models.Position, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *MemoryStore) PositionsBetween(_ context.Context, deviceID int64, from, to *time.Time) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.DeviceID != deviceID {
			continue
		}
		if from != nil && p.Timestamp.Before(*from) {
			continue
		}
		if to != nil && p.Timestamp.After(*to) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(&out[j], &out[i]) })
	return out, nil
}

// DeviceCount reports how many devices are registered.
func (s *MemoryStore) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// PositionCount reports how many positions are stored.
func (s *MemoryStore) PositionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

func newer(a, b *models.Position) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID > b.ID
	}
	return a.Timestamp.After(b.Timestamp)
}

func cloneDevice(d *models.Device) *models.Device {
	out := *d
	return &out
}
