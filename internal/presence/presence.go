package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 120 * time.Second

// Tracker mirrors the live roster into Redis so sibling services (lobby
// pages, admin dashboards) can see who is in which meeting without asking
// the coordination server. It is advisory only: room state never depends on
// it, and a nil client disables it entirely.
type Tracker struct {
	client *redis.Client
}

// NewTracker connects to Redis, or returns a disabled tracker when no URL is
// configured.
func NewTracker(redisURL string) (*Tracker, error) {
	if redisURL == "" {
		return &Tracker{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Tracker{client: client}, nil
}

// Enabled reports whether a Redis backend is configured.
func (t *Tracker) Enabled() bool {
	return t != nil && t.client != nil
}

func (t *Tracker) SetOnline(roomID, userID string) {
	if !t.Enabled() {
		return
	}
	ctx := context.Background()
	pipe := t.client.Pipeline()
	pipe.SAdd(ctx, onlineKey(roomID), userID)
	pipe.Set(ctx, "presence:"+userID, roomID, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("presence update failed", "room_id", roomID, "user_id", userID, "error", err)
	}
}

func (t *Tracker) SetOffline(roomID, userID string) {
	if !t.Enabled() {
		return
	}
	ctx := context.Background()
	pipe := t.client.Pipeline()
	pipe.SRem(ctx, onlineKey(roomID), userID)
	pipe.Del(ctx, "presence:"+userID)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("presence update failed", "room_id", roomID, "user_id", userID, "error", err)
	}
}

// Online returns the user ids currently mirrored for a room.
func (t *Tracker) Online(roomID string) ([]string, error) {
	if !t.Enabled() {
		return nil, nil
	}
	return t.client.SMembers(context.Background(), onlineKey(roomID)).Result()
}

// Close releases the Redis connection.
func (t *Tracker) Close() error {
	if !t.Enabled() {
		return nil
	}
	return t.client.Close()
}

func onlineKey(roomID string) string {
	return "meeting:" + roomID + ":online"
}
