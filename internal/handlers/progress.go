package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/models"
)

var progressWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamProgress handles GET /api/job-progress/{job_id}/stream. It relays the
// job's progress events as server-sent events until the job reaches a
// terminal stage or the client disconnects. No history is replayed; clients
// reconcile via the status endpoint after reconnecting.
func (h *Handler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]

	if h.bus == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "progress streaming not configured")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.bus.Subscribe(r.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to subscribe to progress topic")
		writeJSONError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, "connected", map[string]any{
		"job_id": jobID,
		"status": job.Status,
	})
	flusher.Flush()

	log.Debug().Str("job_id", jobID).Msg("Progress stream opened")

	for {
		update, err := sub.Next(r.Context())
		if err != nil {
			if r.Context().Err() != nil {
				// Client disconnected; release the subscription quietly.
				log.Debug().Str("job_id", jobID).Msg("Progress stream client disconnected")
				return
			}
			log.Error().Err(err).Str("job_id", jobID).Msg("Progress stream read failed")
			writeSSE(w, "error", map[string]string{"error": "stream failed"})
			flusher.Flush()
			return
		}

		writeSSE(w, "progress", update)
		flusher.Flush()

		if update.Stage == models.StageCompleted || update.Stage == models.StageFailed {
			log.Debug().Str("job_id", jobID).Str("stage", string(update.Stage)).Msg("Progress stream finished")
			return
		}
	}
}

// writeSSE writes one server-sent event with the payload serialized as JSON.
func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE payload")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// StreamProgressWS handles GET /api/job-progress/{job_id}/ws, the WebSocket
// flavor of the progress stream.
func (h *Handler) StreamProgressWS(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]

	if h.bus == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "progress streaming not configured")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := progressWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("progress ws upgrade failed")
		return
	}
	defer conn.Close()

	sub, err := h.bus.Subscribe(r.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to subscribe to progress topic")
		return
	}
	defer sub.Close()

	if err := writeWSJSON(conn, map[string]any{"type": "connected", "job_id": jobID, "status": job.Status}); err != nil {
		return
	}

	for {
		update, err := sub.Next(r.Context())
		if err != nil {
			if r.Context().Err() == nil {
				log.Error().Err(err).Str("job_id", jobID).Msg("Progress ws read failed")
			}
			return
		}

		if err := writeWSJSON(conn, update); err != nil {
			log.Debug().Err(err).Str("job_id", jobID).Msg("progress ws write")
			return
		}

		if update.Stage == models.StageCompleted || update.Stage == models.StageFailed {
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
