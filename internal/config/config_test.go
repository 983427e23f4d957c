package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRelayDefaults(t *testing.T) {
	cfg := LoadRelay()
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 500, cfg.MaxRooms)
	require.Equal(t, 25, cfg.MaxRoomSize)
	require.Equal(t, 512*1024, cfg.MaxMessageBytes)
}

func TestLoadRelayFromEnv(t *testing.T) {
	t.Setenv("RELAY_ADDR", ":9999")
	t.Setenv("MAX_ROOMS", "3")
	t.Setenv("MAX_ROOM_SIZE", "not-a-number")

	cfg := LoadRelay()
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, 3, cfg.MaxRooms)
	require.Equal(t, 25, cfg.MaxRoomSize, "unparsable values fall back to the default")
}

func TestDefaultTunables(t *testing.T) {
	tn := DefaultTunables()
	require.Equal(t, 15*time.Second, tn.JoinTimeout)
	require.Equal(t, 100*time.Millisecond, tn.UpdateDebounce)
	require.Equal(t, 50*time.Millisecond, tn.StrokeInterval)
	require.Equal(t, 16*time.Millisecond, tn.CursorInterval)
}
