package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 25 * time.Second
)

// EventsHandler streams accepted mutations to browsers as server-sent
// events. Slow clients miss events rather than stall writers; they recover
// through the sync endpoint.
type EventsHandler struct {
	resources ports.ResourceService
	logger    *slog.Logger
	heartbeat time.Duration
}

func NewEventsHandler(resources ports.ResourceService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{resources: resources, logger: logging.OrDefault(logger), heartbeat: heartbeatInterval}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	logger := logging.Component(r.Context(), h.logger, "EventsHandler", "Stream")

	events := make(chan domain.ResourceChange, eventBuffer)
	unsubscribe := h.resources.Subscribe(func(c domain.ResourceChange) {
		select {
		case events <- c:
		default:
			logger.Warn("event dropped for slow subscriber", "event_id", c.EventID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c := <-events:
			data, err := json.Marshal(c)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", c.EventID, c.Action, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
