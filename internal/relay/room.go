package relay

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"boardsync/internal/board"
	"boardsync/internal/presence"
)

var (
	ErrRoomFull   = errors.New("room is full")
	ErrAtCapacity = errors.New("server at maximum room capacity")
)

// conn is one connected participant: the websocket plus a write lock so
// concurrent broadcasts never interleave frames.
type conn struct {
	userID string
	ws     *websocket.Conn
	mu     sync.Mutex
}

func (c *conn) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Room holds one board's relay state: elements, the live roster, and
// the connections to fan events out to.
type Room struct {
	ID    string
	Title string

	conns        map[string]*conn
	elements     map[string]*board.Shape
	participants map[string]board.Participant
	colors       *presence.ColorGenerator

	LastActive time.Time
	CreatedAt  time.Time
	mu         sync.RWMutex
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		Title:        id,
		conns:        make(map[string]*conn),
		elements:     make(map[string]*board.Shape),
		participants: make(map[string]board.Participant),
		colors:       presence.NewColorGenerator(),
		LastActive:   time.Now(),
		CreatedAt:    time.Now(),
	}
}

// Join: adds a participant and assigns a color; the first joiner owns
// the board.
func (r *Room) Join(userID, displayName string, ws *websocket.Conn, maxRoomSize int) (*conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= maxRoomSize {
		return nil, ErrRoomFull
	}

	p, known := r.participants[userID]
	if !known {
		role := board.RoleEditor
		if len(r.participants) == 0 {
			role = board.RoleOwner
		}
		p = board.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Color:       r.colors.NextColor(),
			Role:        role,
			JoinedAt:    time.Now(),
		}
	}
	p.IsActive = true
	r.participants[userID] = p
	c := &conn{userID: userID, ws: ws}
	r.conns[userID] = c
	r.LastActive = time.Now()
	return c, nil
}

// Leave: removes a participant's connection and roster entry
func (r *Room) Leave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, userID)
	delete(r.participants, userID)
	r.LastActive = time.Now()
}

// AddElement: inserts a shape, refusing duplicates and capacity overruns
func (r *Room) AddElement(s *board.Shape, maxElements int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.elements[s.ID]; exists {
		return false
	}
	if len(r.elements) >= maxElements {
		return false
	}
	r.elements[s.ID] = s.Clone()
	r.LastActive = time.Now()
	return true
}

// UpdateElement: merges changes onto a stored shape
func (r *Room) UpdateElement(id string, p *board.Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.elements[id]
	if !exists {
		return false
	}
	s.Apply(p)
	r.LastActive = time.Now()
	return true
}

// ElementType returns the stored type of an element.
func (r *Room) ElementType(id string) (board.ShapeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.elements[id]
	if !exists {
		return "", false
	}
	return s.Type, true
}

// DeleteElement: removes a shape
func (r *Room) DeleteElement(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.elements, id)
	r.LastActive = time.Now()
}

// Snapshot: builds the join-time board state in stacking order
func (r *Room) Snapshot() *board.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	elements := make([]*board.Shape, 0, len(r.elements))
	for _, s := range r.elements {
		elements = append(elements, s.Clone())
	}
	sortShapes(elements)

	return &board.Snapshot{
		ID:           r.ID,
		Title:        r.Title,
		Elements:     elements,
		Participants: r.rosterLocked(),
	}
}

// Roster: returns the current participant list
func (r *Room) Roster() []board.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked()
}

func (r *Room) rosterLocked() []board.Participant {
	roster := make([]board.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, p)
	}
	sortParticipants(roster)
	return roster
}

// ParticipantColor: returns the color assigned to a user in this room
func (r *Room) ParticipantColor(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants[userID].Color
}

// ConnectionCount: returns the number of live connections
func (r *Room) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ElementCount: returns the number of stored shapes
func (r *Room) ElementCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elements)
}

func sortShapes(shapes []*board.Shape) {
	sort.Slice(shapes, func(i, j int) bool {
		if shapes[i].OrderIndex != shapes[j].OrderIndex {
			return shapes[i].OrderIndex < shapes[j].OrderIndex
		}
		return shapes[i].ID < shapes[j].ID
	})
}

func sortParticipants(roster []board.Participant) {
	sort.Slice(roster, func(i, j int) bool {
		if !roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].JoinedAt.Before(roster[j].JoinedAt)
		}
		return roster[i].UserID < roster[j].UserID
	})
}
