package relay

import (
	"sync"
	"time"
)

// Manager manages all rooms on the relay
type Manager struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate: returns the room for a board id, creating it if the
// global room limit allows
func (m *Manager) GetOrCreate(boardID string, maxRooms int) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, exists := m.rooms[boardID]; exists {
		return r, nil
	}
	if len(m.rooms) >= maxRooms {
		return nil, ErrAtCapacity
	}
	r := newRoom(boardID)
	m.rooms[boardID] = r
	return r, nil
}

// Get: returns the room for a board id if it exists
func (m *Manager) Get(boardID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, exists := m.rooms[boardID]
	return r, exists
}

// RoomCount returns the total number of rooms
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Cleanup removes expired rooms.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	// Room removed if 1 hour empty or 24 hours old
	for id, r := range m.rooms {
		r.mu.RLock()
		empty := len(r.conns) == 0
		inactive := now.Sub(r.LastActive) > 1*time.Hour
		expired := now.Sub(r.CreatedAt) > 24*time.Hour
		r.mu.RUnlock()

		if (inactive && empty) || expired {
			delete(m.rooms, id)
		}
	}
}
