package config

import (
	"os"
	"strconv"
	"time"
)

// Tunables holds the timing and limit knobs of the sync engine.
// The defaults match the reference behavior but nothing in the engine
// assumes they are optimal; callers may override any of them.
type Tunables struct {
	// JoinTimeout bounds the join handshake. On expiry the session is
	// aborted with no partial state.
	JoinTimeout time.Duration

	// UpdateDebounce coalesces rapid updates to the same ordinary shape.
	UpdateDebounce time.Duration

	// StrokeInterval caps update frequency per in-progress draw stroke.
	StrokeInterval time.Duration

	// CursorInterval caps outbound cursor position sends (~60Hz).
	CursorInterval time.Duration
}

// DefaultTunables returns the reference intervals.
func DefaultTunables() Tunables {
	return Tunables{
		JoinTimeout:    15 * time.Second,
		UpdateDebounce: 100 * time.Millisecond,
		StrokeInterval: 50 * time.Millisecond,
		CursorInterval: 16 * time.Millisecond,
	}
}

// RelayConfig holds the relay server configuration, loaded from the
// environment.
type RelayConfig struct {
	Addr            string
	AllowedOrigins  string
	MaxRooms        int
	MaxRoomSize     int
	MaxElements     int
	MaxMessageBytes int
	LogLevel        string
}

// LoadRelay reads the relay configuration from environment variables.
func LoadRelay() *RelayConfig {
	return &RelayConfig{
		Addr:            getEnv("RELAY_ADDR", ":8080"),
		AllowedOrigins:  getEnv("DOMAINS", ""),
		MaxRooms:        getEnvInt("MAX_ROOMS", 500),
		MaxRoomSize:     getEnvInt("MAX_ROOM_SIZE", 25),
		MaxElements:     getEnvInt("MAX_ELEMENTS", 5000),
		MaxMessageBytes: getEnvInt("MAX_MESSAGE_BYTES", 512*1024),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
