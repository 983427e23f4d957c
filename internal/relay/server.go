// Package relay implements the sequencing server for board sessions:
// one room per board, join handshake returning the authoritative
// snapshot, and in-order fan-out of element and presence events.
package relay

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"boardsync/internal/board"
	"boardsync/internal/config"
	"boardsync/internal/protocol"
)

const (
	joinWait   = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // send pings at 90% of pong deadline
	writeWait  = 10 * time.Second
)

// Server accepts board session connections and relays their events.
type Server struct {
	manager     *Manager
	sessions    *SessionManager
	broadcaster *Broadcaster
	ipLimiter   *IPRateLimit
	limits      *Limits
	validator   *board.Validator
	upgrader    websocket.Upgrader
	log         *slog.Logger
}

// NewServer builds a relay server from configuration.
func NewServer(cfg *config.RelayConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	allowed := strings.Split(cfg.AllowedOrigins, ",")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowedOrigins == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, a := range allowed {
				if origin == strings.TrimSpace(a) {
					return true
				}
			}
			return false
		},
	}

	return &Server{
		manager:     NewManager(),
		sessions:    NewSessionManager(),
		broadcaster: NewBroadcaster(log),
		ipLimiter:   NewIPRateLimit(),
		limits:      LimitsFromConfig(cfg),
		validator:   board.NewValidator(),
		upgrader:    upgrader,
		log:         log,
	}
}

// Manager exposes the room manager, for the cleanup loop.
func (s *Server) Manager() *Manager {
	return s.manager
}

// Sessions exposes the session manager, for the cleanup loop.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// IPLimiter exposes the per-IP limiter, for the cleanup loop.
func (s *Server) IPLimiter() *IPRateLimit {
	return s.ipLimiter
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	return mux
}

// getClientIP: extracts the client IP from the request. RemoteAddr only,
// it cannot be spoofed by the client.
func getClientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// ServeWS upgrades the connection and runs one board session. The first
// message must be a join request; the reply is the board snapshot.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !s.ipLimiter.Allow(clientIP) {
		s.log.Warn("connection rate limit exceeded", "ip", clientIP)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "ip", clientIP, "error", err)
		return
	}
	defer ws.Close()

	// The join request must arrive promptly.
	ws.SetReadDeadline(time.Now().Add(joinWait))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		s.log.Warn("no join request received", "ip", clientIP, "error", err)
		return
	}
	ws.SetReadDeadline(time.Time{})

	ev, err := protocol.Decode(raw)
	if err != nil {
		s.log.Warn("undecodable join request", "ip", clientIP, "error", err)
		return
	}
	join, ok := ev.(*protocol.Join)
	if !ok {
		s.log.Warn("expected join request", "ip", clientIP, "kind", ev.Kind())
		return
	}
	if join.BoardID == "" {
		s.rejectJoin(ws, "board id missing")
		return
	}

	userID := join.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	displayName := join.DisplayName
	if displayName == "" {
		displayName = "anonymous"
	}

	room, err := s.manager.GetOrCreate(join.BoardID, s.limits.MaxRooms)
	if err != nil {
		s.rejectJoin(ws, err.Error())
		return
	}
	c, err := room.Join(userID, displayName, ws, s.limits.MaxRoomSize)
	if err != nil {
		s.rejectJoin(ws, err.Error())
		return
	}
	sess := s.sessions.GetOrCreate(userID)

	defer func() {
		room.Leave(userID)
		s.sessions.Remove(userID)
		s.broadcastEvent(room, &protocol.UserLeft{Participants: room.Roster()}, userID)
	}()

	// Acknowledge the join with the authoritative snapshot.
	ack, err := protocol.Encode(&protocol.JoinAck{Board: room.Snapshot()})
	if err != nil {
		s.log.Error("marshal join ack", "error", err)
		return
	}
	if err := c.write(ack); err != nil {
		s.log.Warn("send join ack failed", "user", userID, "error", err)
		return
	}

	s.broadcastEvent(room, &protocol.UserJoined{Participants: room.Roster()}, userID)
	s.log.Info("participant joined", "board", join.BoardID, "user", userID,
		"connections", room.ConnectionCount())

	s.run(ws, c, room, userID, sess)
}

func (s *Server) rejectJoin(ws *websocket.Conn, reason string) {
	if raw, err := protocol.Encode(&protocol.JoinAck{Error: reason}); err == nil {
		ws.WriteMessage(websocket.TextMessage, raw)
	}
}

// run: message loop for one connection
func (s *Server) run(ws *websocket.Conn, c *conn, room *Room, userID string, sess *session) {
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	// Ping goroutine
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return // connection dead
		}

		if !s.limits.ValidateMessageSize(len(raw)) {
			s.log.Warn("message too large", "user", userID, "bytes", len(raw))
			continue
		}
		if !sess.RateLimiter.Allow() {
			s.log.Warn("message rate limit exceeded", "user", userID)
			continue
		}

		ev, err := protocol.Decode(raw)
		if err != nil {
			s.log.Warn("dropping undecodable message", "user", userID, "error", err)
			continue
		}
		s.handleEvent(room, userID, ev)
	}
}

// handleEvent applies one inbound event to the room and fans it out.
func (s *Server) handleEvent(room *Room, userID string, ev protocol.Event) {
	switch e := ev.(type) {
	case *protocol.ElementCreate:
		clean, err := s.validator.ValidateShape(e.Element)
		if err != nil {
			s.log.Warn("dropping invalid element", "user", userID, "error", err)
			return
		}
		if !room.AddElement(clean, s.limits.MaxElements) {
			// duplicate id or room at element capacity
			return
		}
		s.broadcastEvent(room, &protocol.ElementCreate{Element: clean, UserID: userID}, userID)

	case *protocol.ElementUpdate:
		t, exists := room.ElementType(e.ID)
		if !exists {
			s.log.Warn("dropping update for unknown element", "user", userID, "id", e.ID)
			return
		}
		clean, err := s.validator.ValidatePatch(t, e.Changes)
		if err != nil {
			s.log.Warn("dropping invalid update", "user", userID, "id", e.ID, "error", err)
			return
		}
		room.UpdateElement(e.ID, clean)
		s.broadcastEvent(room, &protocol.ElementUpdate{ID: e.ID, Changes: clean, UserID: userID}, userID)

	case *protocol.ElementDelete:
		if e.ID == "" {
			return
		}
		room.DeleteElement(e.ID)
		s.broadcastEvent(room, &protocol.ElementDelete{ID: e.ID, UserID: userID}, userID)

	case *protocol.CursorMove:
		// Throttle cursor updates to ~30fps per user
		if !s.sessions.AllowCursor(userID) {
			return
		}
		s.broadcastEvent(room, &protocol.CursorMove{
			UserID:   userID,
			Position: e.Position,
			Color:    room.ParticipantColor(userID),
		}, userID)

	default:
		s.log.Warn("unexpected event kind", "user", userID, "kind", ev.Kind())
	}
}

func (s *Server) broadcastEvent(room *Room, ev protocol.Event, senderID string) {
	raw, err := protocol.Encode(ev)
	if err != nil {
		s.log.Error("marshal broadcast", "kind", ev.Kind(), "error", err)
		return
	}
	s.broadcaster.Broadcast(room, raw, senderID)
}
