package relay

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// session tracks per-user relay state across a connection.
type session struct {
	UserID      string
	LastSeen    time.Time
	LastCursor  time.Time
	RateLimiter *rate.Limiter
}

// SessionManager manages user sessions
type SessionManager struct {
	sessions map[string]*session
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*session),
	}
}

// GetOrCreate: gets an existing session or creates a new one
func (sm *SessionManager) GetOrCreate(userID string) *session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, exists := sm.sessions[userID]
	if exists {
		s.LastSeen = time.Now()
		return s
	}

	s = &session{
		UserID:      userID,
		LastSeen:    time.Now(),
		RateLimiter: rate.NewLimiter(60, 20), // 60 msg/sec, burst of 20
	}
	sm.sessions[userID] = s
	return s
}

// AllowCursor: throttles cursor relaying to ~30fps per user
func (sm *SessionManager) AllowCursor(userID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, exists := sm.sessions[userID]
	if !exists {
		return false
	}
	now := time.Now()
	if now.Sub(s.LastCursor) < 33*time.Millisecond {
		return false
	}
	s.LastCursor = now
	return true
}

// Remove: removes a user session (called on disconnect)
func (sm *SessionManager) Remove(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}

// Cleanup: removes sessions inactive for an hour
func (sm *SessionManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for userID, s := range sm.sessions {
		if now.Sub(s.LastSeen) > 1*time.Hour {
			delete(sm.sessions, userID)
		}
	}
}
