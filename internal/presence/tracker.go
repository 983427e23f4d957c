// Package presence tracks the ephemeral session state of a board: who is
// here and where their cursors are. Nothing in this package is ever
// persisted.
package presence

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"boardsync/internal/board"
)

// Tracker holds the participant roster and per-user cursor positions for
// one board session.
type Tracker struct {
	mu           sync.RWMutex
	participants map[string]board.Participant
	cursors      map[string]board.CursorPosition

	// bounds outbound cursor traffic to roughly one send per frame
	sendLimiter *rate.Limiter
}

// NewTracker returns an empty tracker. cursorInterval bounds how often
// AllowCursorSend grants an outbound cursor update.
func NewTracker(cursorInterval time.Duration) *Tracker {
	if cursorInterval <= 0 {
		cursorInterval = 16 * time.Millisecond
	}
	return &Tracker{
		participants: make(map[string]board.Participant),
		cursors:      make(map[string]board.CursorPosition),
		sendLimiter:  rate.NewLimiter(rate.Every(cursorInterval), 1),
	}
}

// SetRoster replaces the roster with the server's view. Cursors of users
// no longer present are dropped.
func (t *Tracker) SetRoster(participants []board.Participant) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]board.Participant, len(participants))
	for _, p := range participants {
		next[p.UserID] = p
	}
	for userID := range t.cursors {
		if _, ok := next[userID]; !ok {
			delete(t.cursors, userID)
		}
	}
	t.participants = next
}

// SetCursor overwrites the cursor position for a user. Positions from
// users not on the roster are ignored.
func (t *Tracker) SetCursor(userID string, pos board.CursorPosition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.participants[userID]; !ok {
		return
	}
	t.cursors[userID] = pos
}

// Cursor returns the last known cursor position for a user.
func (t *Tracker) Cursor(userID string) (board.CursorPosition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.cursors[userID]
	return pos, ok
}

// Participant returns the roster entry for a user.
func (t *Tracker) Participant(userID string) (board.Participant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.participants[userID]
	return p, ok
}

// Participants returns the roster ordered by join time.
func (t *Tracker) Participants() []board.Participant {
	t.mu.RLock()
	out := make([]board.Participant, 0, len(t.participants))
	for _, p := range t.participants {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Count returns the roster size.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.participants)
}

// AllowCursorSend reports whether an outbound cursor update may be sent
// now. Denied updates are simply dropped; the next allowed send carries
// the current position anyway.
func (t *Tracker) AllowCursorSend() bool {
	return t.sendLimiter.Allow()
}

// Reset clears all ephemeral state, for session teardown.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.participants = make(map[string]board.Participant)
	t.cursors = make(map[string]board.CursorPosition)
}
