package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roomloop/server/internal/history"
	"github.com/roomloop/server/internal/media"
	"github.com/roomloop/server/internal/room"
	"github.com/roomloop/server/internal/transport"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "meeting",
	})
}

// Stats reports live coordination-plane and media-plane counts.
func Stats(rooms *room.Manager, hub *transport.Hub, router *media.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"active_rooms":   rooms.Count(),
			"participants":   rooms.ParticipantCount(),
			"connections":    hub.Count(),
			"media_sessions": router.SessionCount(),
		})
	}
}

// RoomEvents exposes the durable event stream for one room. Returns 404 when
// no persistence collaborator is configured.
func RoomEvents(sink *history.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sink == nil {
			writeError(w, http.StatusNotFound, "event history is not enabled")
			return
		}
		roomID := mux.Vars(r)["id"]
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		events, err := sink.Events(roomID, limit)
		if err != nil {
			slog.Error("failed to load room events", "room_id", roomID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
