package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// SSEHandler streams events via Server-Sent Events.
type SSEHandler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewSSEHandler creates a handler streaming from hub.
func NewSSEHandler(hub *Hub, logger *slog.Logger) *SSEHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSEHandler{hub: hub, logger: logger}
}

// ServeHTTP handles SSE connections. The optional "types" query parameter
// restricts the stream to a comma separated list of event types.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	filter := ParseTypeFilter(r.URL.Query().Get("types"))

	ch, detach := h.hub.Attach()
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if !filter.Allows(event.Type) {
				continue
			}
			data, err := json.Marshal(NewMessage(event))
			if err != nil {
				h.logger.Warn("failed to encode event", "event_type", event.Type, "error", err)
				continue
			}
			if event.ID != "" {
				_, _ = fmt.Fprintf(w, "id: %s\n", event.ID)
			}
			_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
