package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Sink durably appends emitted room events to Postgres. It sits outside the
// core: the in-memory room is the source of truth while a meeting is live,
// and this subscriber exists only so billing, transcripts, and analytics can
// read what happened afterwards. Record never blocks the room lock; events
// go through a buffered queue drained by workers, and the queue sheds load
// rather than stalling a broadcast.
type Sink struct {
	db    *sql.DB
	queue chan record
	done  chan struct{}
}

type record struct {
	roomID    string
	eventType string
	payload   []byte
	at        time.Time
}

const (
	queueSize = 4096
	workers   = 4
)

// Open connects, prepares the events table, and starts the drain workers.
func Open(databaseURL string) (*Sink, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS room_events (
			id         BIGSERIAL PRIMARY KEY,
			room_id    TEXT        NOT NULL,
			event_type TEXT        NOT NULL,
			payload    JSONB,
			occurred_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, occurred_at);
	`); err != nil {
		return nil, fmt.Errorf("failed to prepare room_events table: %w", err)
	}

	s := &Sink{
		db:    db,
		queue: make(chan record, queueSize),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go s.drain()
	}
	return s, nil
}

// Record implements room.Sink.
func (s *Sink) Record(roomID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case s.queue <- record{roomID: roomID, eventType: eventType, payload: data, at: time.Now().UTC()}:
	default:
		slog.Warn("dropping history event, queue full", "room_id", roomID, "event_type", eventType)
	}
}

func (s *Sink) drain() {
	for {
		select {
		case rec := <-s.queue:
			_, err := s.db.Exec(
				`INSERT INTO room_events (room_id, event_type, payload, occurred_at) VALUES ($1, $2, $3, $4)`,
				rec.roomID, rec.eventType, rec.payload, rec.at,
			)
			if err != nil {
				slog.Error("failed to record room event", "room_id", rec.roomID, "event_type", rec.eventType, "error", err)
			}
		case <-s.done:
			return
		}
	}
}

// Events returns the recorded stream for a room, oldest first. Used by the
// replay/export endpoint, not by the live path.
func (s *Sink) Events(roomID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(
		`SELECT event_type, payload, occurred_at FROM room_events
		 WHERE room_id = $1 ORDER BY occurred_at ASC, id ASC LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query room events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Type, &e.Payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Event is one durably stored room event.
type Event struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Close stops the workers and closes the database.
func (s *Sink) Close() error {
	close(s.done)
	return s.db.Close()
}
