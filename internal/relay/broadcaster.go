package relay

import (
	"log/slog"
	"sync"
)

// Broadcaster: fans messages out to a room's connections
type Broadcaster struct {
	log *slog.Logger
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log}
}

// Broadcast: sends a message to every connection in the room except the
// sender. Failed connections are pruned from the room.
func (b *Broadcaster) Broadcast(r *Room, msg []byte, senderID string) {
	r.mu.RLock()
	targets := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		if c.userID != senderID {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	// Concurrent write to all targets
	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed []*conn

	for _, c := range targets {
		wg.Add(1)
		go func(c *conn) {
			defer wg.Done()
			if err := c.write(msg); err != nil {
				b.log.Warn("broadcast failed", "user", c.userID, "room", r.ID, "error", err)
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	// Clean up failed connections
	for _, c := range failed {
		r.Leave(c.userID)
		c.ws.Close()
	}
}
