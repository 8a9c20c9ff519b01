package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/narvanalabs/logkeeper/internal/logs"
)

// tailPingInterval keeps idle connections open through proxies.
const tailPingInterval = 5 * time.Second

// LogStreamHandler tails newly created entries via Server-Sent Events.
type LogStreamHandler struct {
	broker   *logs.Broker
	location *time.Location
	logger   *slog.Logger
}

// NewLogStreamHandler creates a new log stream handler.
func NewLogStreamHandler(broker *logs.Broker, location *time.Location, logger *slog.Logger) *LogStreamHandler {
	if location == nil {
		location = time.UTC
	}
	return &LogStreamHandler{
		broker:   broker,
		location: location,
		logger:   logger,
	}
}

// Tail handles GET /v1/logs/{stream}/tail. Query parameters filter the feed the same
// way they filter a listing.
func (h *LogStreamHandler) Tail(w http.ResponseWriter, r *http.Request) {
	stream, ok := parseStream(w, r)
	if !ok {
		return
	}
	_, pred, err := parseFilter(r, h.location)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w, r, "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.broker.Subscribe(stream, pred)
	defer h.broker.Unsubscribe(sub)

	h.logger.Info("log tail started", "stream", stream, "subscriber_id", sub.ID)
	h.sendEvent(w, flusher, "connected", map[string]string{
		"stream":        string(stream),
		"subscriber_id": sub.ID,
	})

	pingTicker := time.NewTicker(tailPingInterval)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("log tail closed by client", "stream", stream, "subscriber_id", sub.ID)
			return
		case <-pingTicker.C:
			h.sendEvent(w, flusher, "ping", map[string]int64{"time": time.Now().Unix()})
		case entry, ok := <-sub.Ch:
			if !ok {
				return
			}
			h.sendEvent(w, flusher, "entry", entry)
		}
	}
}

// sendEvent sends a Server-Sent Event.
func (h *LogStreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal event data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
