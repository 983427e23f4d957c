package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"boardsync/internal/board"
	"boardsync/internal/protocol"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeRelay runs fn against each upgraded connection.
func fakeRelay(t *testing.T, fn func(ws *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		fn(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendEvent(t *testing.T, ws *websocket.Conn, ev protocol.Event) {
	t.Helper()
	raw, err := protocol.Encode(ev)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw))
}

func TestLinkJoinReceivesSnapshot(t *testing.T) {
	url := fakeRelay(t, func(ws *websocket.Conn) {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ev, err := protocol.Decode(raw)
		require.NoError(t, err)
		join := ev.(*protocol.Join)
		require.Equal(t, "b1", join.BoardID)

		sendEvent(t, ws, &protocol.JoinAck{Board: &board.Snapshot{ID: "b1", Title: "demo"}})
		time.Sleep(100 * time.Millisecond)
	})

	l, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer l.Close()

	snap, err := l.Join(context.Background(), "b1", "u1", "Ada")
	require.NoError(t, err)
	require.Equal(t, "b1", snap.ID)
	require.Equal(t, "demo", snap.Title)
}

func TestLinkJoinRejected(t *testing.T) {
	url := fakeRelay(t, func(ws *websocket.Conn) {
		ws.ReadMessage()
		sendEvent(t, ws, &protocol.JoinAck{Error: "room is full"})
		time.Sleep(100 * time.Millisecond)
	})

	l, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Join(context.Background(), "b1", "u1", "Ada")
	require.ErrorIs(t, err, ErrJoinFailed)
	require.Contains(t, err.Error(), "room is full")
}

func TestLinkJoinTimeout(t *testing.T) {
	url := fakeRelay(t, func(ws *websocket.Conn) {
		// swallow the join and never reply
		ws.ReadMessage()
		time.Sleep(time.Second)
	})

	l, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Join(ctx, "b1", "u1", "Ada")
	require.ErrorIs(t, err, ErrJoinTimeout)
}

func TestLinkDispatchesEventsInOrder(t *testing.T) {
	url := fakeRelay(t, func(ws *websocket.Conn) {
		// wait for the client before sending so no event outruns its handler
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		for i := 0; i < 3; i++ {
			sendEvent(t, ws, &protocol.ElementDelete{ID: string(rune('a' + i))})
		}
		time.Sleep(200 * time.Millisecond)
	})

	l, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer l.Close()

	got := make(chan string, 3)
	l.OnEvent(protocol.KindElementDelete, func(ev protocol.Event) {
		got <- ev.(*protocol.ElementDelete).ID
	})
	require.NoError(t, l.Send(&protocol.ElementDelete{ID: "ready"}))

	var ids []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-got:
			ids = append(ids, id)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	require.Equal(t, []string{"a", "b", "c"}, ids, "events arrive in server-delivery order")
}

func TestLinkCloseReportsCleanDisconnect(t *testing.T) {
	url := fakeRelay(t, func(ws *websocket.Conn) {
		ws.ReadMessage() // block until the peer goes away
	})

	l, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)

	gotErr := make(chan error, 1)
	l.OnDisconnect(func(err error) { gotErr <- err })

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	select {
	case err := <-gotErr:
		require.NoError(t, err, "a deliberate close is not a failure")
	case <-time.After(time.Second):
		t.Fatal("disconnect handler never ran")
	}
}

func TestLinkDialRetriesUntilContextExpires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/ws", nil)
	require.Error(t, err)
}
