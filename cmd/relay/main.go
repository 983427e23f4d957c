package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"boardsync/internal/config"
	"boardsync/internal/relay"
)

func main() {
	// .env is optional; the environment wins
	_ = godotenv.Load()

	cfg := config.LoadRelay()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	server := relay.NewServer(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupLoop(ctx, server)

	log.Info("relay listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// cleanupLoop: periodically removes expired rooms, sessions and limiters
func cleanupLoop(ctx context.Context, server *relay.Server) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			server.Manager().Cleanup()
			server.Sessions().Cleanup()
			server.IPLimiter().Cleanup()
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
