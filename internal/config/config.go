package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the server needs; it is built once in main and
// injected, never read from the environment after startup.
type Config struct {
	Port       string
	CORSOrigin string
	JWTSecret  string

	// Optional collaborators. Empty means the feature is disabled.
	DatabaseURL string
	RedisURL    string

	// Media plane.
	UDPPortMin       int
	UDPPortMax       int
	ICEServers       []string
	ICEUsername      string
	ICECredential    string
	VideoBitrateKbps int

	NegotiationTimeout time.Duration
	RoomGracePeriod    time.Duration
	TimerTickInterval  time.Duration

	MaxConnections  int
	ActionsPerSec   float64
	ActionBurst     int
	ShutdownTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}

	return &Config{
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		UDPPortMin:       envInt("RTC_UDP_PORT_MIN", 50000),
		UDPPortMax:       envInt("RTC_UDP_PORT_MAX", 50199),
		ICEServers:       envList("RTC_ICE_SERVERS"),
		ICEUsername:      getEnv("RTC_ICE_USERNAME", ""),
		ICECredential:    getEnv("RTC_ICE_CREDENTIAL", ""),
		VideoBitrateKbps: envInt("RTC_VIDEO_BITRATE_KBPS", 1500),

		NegotiationTimeout: envDuration("RTC_NEGOTIATION_TIMEOUT", 30*time.Second),
		RoomGracePeriod:    envDuration("ROOM_GRACE_PERIOD", 30*time.Second),
		TimerTickInterval:  envDuration("TIMER_TICK_INTERVAL", time.Second),

		MaxConnections:  envInt("MAX_CONNECTIONS", 1000),
		ActionsPerSec:   float64(envInt("ACTIONS_PER_SECOND", 20)),
		ActionBurst:     envInt("ACTION_BURST", 40),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid int env, using fallback", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration env, using fallback", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return parsed
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
