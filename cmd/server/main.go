package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/roomloop/server/internal/config"
	"github.com/roomloop/server/internal/history"
	"github.com/roomloop/server/internal/httpapi"
	"github.com/roomloop/server/internal/media"
	"github.com/roomloop/server/internal/middleware"
	"github.com/roomloop/server/internal/presence"
	"github.com/roomloop/server/internal/room"
	"github.com/roomloop/server/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("starting meeting server")
	cfg := config.Load()

	// The media plane must bind its forwarding resources before the server
	// accepts any room.
	router, err := media.NewRouter(media.Config{
		UDPPortMin:       cfg.UDPPortMin,
		UDPPortMax:       cfg.UDPPortMax,
		ICEServers:       cfg.ICEServers,
		ICEUsername:      cfg.ICEUsername,
		ICECredential:    cfg.ICECredential,
		VideoBitrateKbps: cfg.VideoBitrateKbps,
	})
	if err != nil {
		slog.Error("failed to initialize media router", "error", err)
		os.Exit(1)
	}
	slog.Info("media router ready", "udp_port_min", cfg.UDPPortMin, "udp_port_max", cfg.UDPPortMax)

	tracker, err := presence.NewTracker(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to init Redis presence", "error", err)
		os.Exit(1)
	}
	defer tracker.Close()
	if tracker.Enabled() {
		slog.Info("presence mirroring enabled")
	}

	var sink *history.Sink
	var roomSink room.Sink = room.NopSink{}
	if cfg.DatabaseURL != "" {
		sink, err = history.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to init event history", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		roomSink = sink
		slog.Info("event history enabled")
	}

	hub := transport.NewHub(cfg.MaxConnections)
	rooms := room.NewManager(hub, roomSink, cfg.RoomGracePeriod, cfg.TimerTickInterval, router.Teardown)
	negotiator := media.NewNegotiator(router, cfg.NegotiationTimeout)
	server := transport.NewServer(hub, rooms, negotiator, tracker, cfg.JWTSecret, cfg.ActionsPerSec, cfg.ActionBurst)

	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigin))

	r.HandleFunc("/health", httpapi.Health).Methods("GET", "OPTIONS")
	r.HandleFunc("/stats", httpapi.Stats(rooms, hub, router)).Methods("GET")
	r.HandleFunc("/rooms/{id}/events", httpapi.RoomEvents(sink)).Methods("GET")
	r.HandleFunc("/ws", server.ServeWS()).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	rooms.Shutdown()
	hub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
