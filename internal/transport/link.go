// Package transport maintains the logical connection between a client
// session and the relay server: one websocket per board session, with
// request/acknowledge join semantics and fire-and-forget event sends.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"boardsync/internal/board"
	"boardsync/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // send pings at 90% of pong deadline
)

var (
	ErrJoinTimeout = errors.New("join timed out")
	ErrJoinFailed  = errors.New("join rejected by relay")
	ErrClosed      = errors.New("transport closed")
)

// Handler observes inbound events of one kind. Handlers run on the read
// loop goroutine, so events are observed in server-delivery order.
type Handler func(protocol.Event)

// DisconnectHandler observes the link going down. A nil error means a
// deliberate Close.
type DisconnectHandler func(error)

// Link is one logical connection to the relay for a board session.
type Link struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu           sync.RWMutex
	handlers     map[protocol.Kind][]Handler
	onDisconnect DisconnectHandler
	joinPending  chan *protocol.JoinAck
	closed       bool

	done chan struct{}
}

// Dial connects to the relay websocket endpoint, retrying transient
// failures with capped exponential backoff until the context expires.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = slog.Default()
	}

	var conn *websocket.Conn
	operation := func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", url, err)
		}
		conn = c
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(30*time.Second),
	), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	l := &Link{
		conn:     conn,
		log:      log,
		handlers: make(map[protocol.Kind][]Handler),
		done:     make(chan struct{}),
	}
	go l.readLoop()
	go l.pingLoop()
	return l, nil
}

// OnEvent registers a handler for one event kind.
func (l *Link) OnEvent(kind protocol.Kind, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[kind] = append(l.handlers[kind], h)
}

// OnDisconnect registers the disconnect observer.
func (l *Link) OnDisconnect(h DisconnectHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDisconnect = h
}

// Join requests entry to a board and suspends until the relay replies
// with the snapshot, the relay rejects the join, or the context expires.
// On timeout or rejection no partial session state is retained.
func (l *Link) Join(ctx context.Context, boardID, userID, displayName string) (*board.Snapshot, error) {
	ackCh := make(chan *protocol.JoinAck, 1)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.joinPending = ackCh
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.joinPending = nil
		l.mu.Unlock()
	}()

	if err := l.Send(&protocol.Join{BoardID: boardID, UserID: userID, DisplayName: displayName}); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	select {
	case ack := <-ackCh:
		if ack.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrJoinFailed, ack.Error)
		}
		if ack.Board == nil {
			return nil, fmt.Errorf("%w: empty snapshot", ErrJoinFailed)
		}
		return ack.Board, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrJoinTimeout, ctx.Err())
	}
}

// Send encodes and writes an event. Fire-and-forget: delivery failures
// surface through the disconnect handler, not the return value of
// ordinary traffic. An error is returned only when the event cannot be
// encoded or the link is already closed.
func (l *Link) Send(ev protocol.Event) error {
	raw, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Kind(), err)
	}
	return nil
}

// Close shuts the link down. Safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	return l.conn.Close()
}

// readLoop reads, decodes, and dispatches inbound events until the
// connection dies. Dispatch is sequential: server-delivery order is the
// only ordering the engine relies on.
func (l *Link) readLoop() {
	defer close(l.done)

	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			l.dispatchDisconnect(err)
			return
		}

		ev, err := protocol.Decode(raw)
		if err != nil {
			l.log.Warn("dropping undecodable event", "error", err)
			continue
		}

		if ack, ok := ev.(*protocol.JoinAck); ok {
			l.mu.RLock()
			pending := l.joinPending
			l.mu.RUnlock()
			if pending != nil {
				pending <- ack
			}
			continue
		}

		l.mu.RLock()
		handlers := l.handlers[ev.Kind()]
		l.mu.RUnlock()
		for _, h := range handlers {
			h(ev)
		}
	}
}

func (l *Link) dispatchDisconnect(err error) {
	l.mu.RLock()
	h := l.onDisconnect
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		err = nil
	} else if err != nil {
		l.log.Warn("transport disconnected", "error", err)
	}
	if h != nil {
		h(err)
	}
}

func (l *Link) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.writeMu.Lock()
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := l.conn.WriteMessage(websocket.PingMessage, nil)
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-l.done:
			return
		}
	}
}
