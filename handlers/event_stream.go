package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"orchestrator-backend/core/workflow"
	"orchestrator-backend/storage/events"
)

const streamHeartbeat = 15 * time.Second

// HandleStreamEvents streams committed workflow events as Server-Sent Events.
// ?type= limits the stream to one event type.
// @Summary Live event stream
// @Tags Events
// @Produce text/event-stream
// @Param type query string false "event type"
// @Router /api/events/stream [get]
func (h *PaymentHandler) HandleStreamEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	only := workflow.EventType(r.URL.Query().Get("type"))

	updates, cancel := h.workflow.Hub().Subscribe(32)
	defer cancel()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		log.Printf("event stream: flushing unsupported: %v", err)
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if only != "" && rec.Type != only {
				continue
			}
			if err := writeSSE(w, rec); err != nil {
				log.Printf("event stream: %v", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, rec events.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", rec.Seq, err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", rec.Seq, rec.Type, data)
	return err
}
