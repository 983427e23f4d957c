package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boardsync/internal/asset"
	"boardsync/internal/board"
	"boardsync/internal/config"
	"boardsync/internal/relay"
	"boardsync/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRelay(t *testing.T, maxRoomSize int) string {
	t.Helper()
	cfg := &config.RelayConfig{
		MaxRooms:        10,
		MaxRoomSize:     maxRoomSize,
		MaxElements:     1000,
		MaxMessageBytes: 8 << 20,
	}
	srv := httptest.NewServer(relay.NewServer(cfg, quietLogger()).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func testTunables() config.Tunables {
	return config.Tunables{
		JoinTimeout:    5 * time.Second,
		UpdateDebounce: 20 * time.Millisecond,
		StrokeInterval: 30 * time.Millisecond,
		CursorInterval: time.Millisecond,
	}
}

func dialEngine(t *testing.T, url, userID string, store asset.Store) *Engine {
	t.Helper()
	link, err := transport.Dial(context.Background(), url, quietLogger())
	require.NoError(t, err)

	e := New(Options{
		Link:        link,
		Store:       store,
		Tunables:    testTunables(),
		Logger:      quietLogger(),
		UserID:      userID,
		DisplayName: userID,
	})
	t.Cleanup(func() { e.Close() })
	return e
}

func TestTwoClientsConverge(t *testing.T) {
	url := startRelay(t, 10)

	a := dialEngine(t, url, "user-a", nil)
	require.NoError(t, a.Join(context.Background(), "b1"))

	// created before the peer joins: delivered via the snapshot
	a.CreateShape(rectShape("s1"))

	b := dialEngine(t, url, "user-b", nil)
	require.NoError(t, b.Join(context.Background(), "b1"))

	require.Eventually(t, func() bool { return b.Document().HasShape("s1") },
		2*time.Second, 10*time.Millisecond)

	// created while both are live: delivered via broadcast
	a.CreateShape(rectShape("s2"))
	require.True(t, a.UpdateShape("s1", &board.Patch{X: fptr(50)}))

	require.Eventually(t, func() bool {
		if !b.Document().HasShape("s2") {
			return false
		}
		s, ok := b.Document().Shape("s1")
		return ok && s.X == 50
	}, 2*time.Second, 10*time.Millisecond)

	s, _ := b.Document().Shape("s1")
	require.Equal(t, 20.0, s.Y, "fields the update did not touch survive")

	// edits flow the other way too
	require.True(t, b.UpdateShape("s2", &board.Patch{Y: fptr(7)}))
	require.Eventually(t, func() bool {
		s, ok := a.Document().Shape("s2")
		return ok && s.Y == 7
	}, 2*time.Second, 10*time.Millisecond)

	// give any stray echo a chance to arrive before the final check
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 2, a.Document().ShapeCount())
	require.Equal(t, 2, b.Document().ShapeCount())

	sa, _ := a.Document().Shape("s1")
	sb, _ := b.Document().Shape("s1")
	require.Equal(t, sa.X, sb.X)
	require.Equal(t, sa.Y, sb.Y)
}

func TestDeletePropagates(t *testing.T) {
	url := startRelay(t, 10)

	a := dialEngine(t, url, "user-a", nil)
	require.NoError(t, a.Join(context.Background(), "b1"))
	b := dialEngine(t, url, "user-b", nil)
	require.NoError(t, b.Join(context.Background(), "b1"))

	a.CreateShape(rectShape("s1"))
	require.Eventually(t, func() bool { return b.Document().HasShape("s1") },
		2*time.Second, 10*time.Millisecond)

	require.True(t, a.DeleteShape("s1"))
	require.Eventually(t, func() bool { return !b.Document().HasShape("s1") },
		2*time.Second, 10*time.Millisecond)
}

func TestPresenceRosterAndCursor(t *testing.T) {
	url := startRelay(t, 10)

	a := dialEngine(t, url, "user-a", nil)
	require.NoError(t, a.Join(context.Background(), "b1"))
	b := dialEngine(t, url, "user-b", nil)
	require.NoError(t, b.Join(context.Background(), "b1"))

	// a learns about b through the roster broadcast
	require.Eventually(t, func() bool { return a.Presence().Count() == 2 },
		2*time.Second, 10*time.Millisecond)
	p, ok := b.Presence().Participant("user-a")
	require.True(t, ok)
	require.NotEmpty(t, p.Color)

	require.NoError(t, a.MoveCursor(board.CursorPosition{X: 120, Y: 44}))
	require.Eventually(t, func() bool {
		pos, ok := b.Presence().Cursor("user-a")
		return ok && pos.X == 120 && pos.Y == 44
	}, 2*time.Second, 10*time.Millisecond)

	// departure shrinks the roster
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return a.Presence().Count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestMoveCursorRequiresConnection(t *testing.T) {
	url := startRelay(t, 10)

	a := dialEngine(t, url, "user-a", nil)
	err := a.MoveCursor(board.CursorPosition{X: 1, Y: 1})
	require.ErrorIs(t, err, ErrNotConnected, "cursor sends before a successful join are refused")
}

func TestTunablesDefaultPerField(t *testing.T) {
	got := tunablesWithDefaults(config.Tunables{UpdateDebounce: 5 * time.Millisecond})
	def := config.DefaultTunables()

	require.Equal(t, 5*time.Millisecond, got.UpdateDebounce, "a partial override survives")
	require.Equal(t, def.JoinTimeout, got.JoinTimeout)
	require.Equal(t, def.StrokeInterval, got.StrokeInterval)
	require.Equal(t, def.CursorInterval, got.CursorInterval)

	require.Equal(t, def, tunablesWithDefaults(config.Tunables{}))
	full := testTunables()
	require.Equal(t, full, tunablesWithDefaults(full))
}

// failingStore rejects every upload.
type failingStore struct{}

func (failingStore) Upload(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("object store unavailable")
}
func (failingStore) PublicURL(string) (string, error) {
	return "", errors.New("object store unavailable")
}

func TestImageUploadFailureFallsBackInline(t *testing.T) {
	url := startRelay(t, 10)

	a := dialEngine(t, url, "user-a", failingStore{})
	require.NoError(t, a.Join(context.Background(), "b1"))
	b := dialEngine(t, url, "user-b", nil)
	require.NoError(t, b.Join(context.Background(), "b1"))

	img := &board.Shape{ID: "img1", Type: board.ShapeImage, Opacity: 1, OrderIndex: "V"}
	a.CreateShape(img)

	content := make([]byte, 2<<20)
	for i := range content {
		content[i] = byte(i)
	}
	a.AttachImageContent(context.Background(), "img1", "photo.bin", content)

	// the peer ends up with a working asset record despite the failed upload
	var assetID string
	require.Eventually(t, func() bool {
		s, ok := b.Document().Shape("img1")
		if !ok {
			return false
		}
		assetID, _ = s.Props[board.PropAssetID].(string)
		return assetID != ""
	}, 5*time.Second, 20*time.Millisecond)

	rec, ok := b.Document().Asset(assetID)
	require.True(t, ok)
	require.Equal(t, board.SourceData, rec.Source())
	decoded, err := base64.StdEncoding.DecodeString(rec.Data)
	require.NoError(t, err)
	require.Equal(t, content, decoded)
}

func TestJoinRejectedWhenRoomFull(t *testing.T) {
	url := startRelay(t, 1)

	a := dialEngine(t, url, "user-a", nil)
	require.NoError(t, a.Join(context.Background(), "b1"))

	b := dialEngine(t, url, "user-b", nil)
	err := b.Join(context.Background(), "b1")
	require.ErrorIs(t, err, transport.ErrJoinFailed)
	require.False(t, b.Connected())
}
