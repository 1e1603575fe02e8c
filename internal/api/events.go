package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sctg/renderpool/internal/model"
	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/store"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the task exists.
	t, err := s.registry.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Already settled: replay the terminal state and finish the stream.
	if model.Terminal(t.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEData(w, pool.Event{
			Status:     t.Status,
			Error:      t.Error,
			DurationMS: t.DurationMS,
		})
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.pool.Broker().Subscribe(id)
	defer unsub()

	// The task may have settled between the status check above and the
	// Subscribe call, in which case the topic is already closed and the loop
	// below would end without ever sending a data event. Re-read and replay
	// the terminal state so the client always sees it.
	if t, err = s.registry.GetTask(r.Context(), id); err == nil && model.Terminal(t.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEData(w, pool.Event{
			Status:     t.Status,
			Error:      t.Error,
			DurationMS: t.DurationMS,
		})
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Task settled; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEData writes one lifecycle event as an SSE data event. The payload
// is a single-line JSON object, so no multi-line splitting is needed.
func writeSSEData(w http.ResponseWriter, ev pool.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
