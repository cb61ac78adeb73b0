package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opencode-ai/llmcall/internal/logging"
)

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeRaw writes an SSE event whose data is already JSON.
func (s *sseWriter) writeRaw(eventType string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

// writeEvent writes an SSE event.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.writeRaw(eventType, jsonData)
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// eventEnvelope is the part of a forwarded event used for filtering.
type eventEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ThreadID string `json:"threadID"`
	} `json:"data"`
}

// belongsToThread reports whether a forwarded event payload concerns
// threadID. An empty threadID matches everything.
func belongsToThread(payload []byte, threadID string) (string, bool) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", false
	}
	return env.Type, threadID == "" || env.Data.ThreadID == threadID
}

// events handles GET /v1/events. It streams the orchestrator's lifecycle
// events read from the bus's watermill topic. The threadId query parameter
// restricts the stream to one thread.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")

	msgs, err := s.bus.Messages(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := sse.writeEvent("message", map[string]any{"type": "server.connected", "data": map[string]any{}}); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			eventType, match := belongsToThread(msg.Payload, threadID)
			msg.Ack()
			if !match {
				continue
			}
			if err := sse.writeRaw("message", msg.Payload); err != nil {
				logging.Component("server").Debug().Err(err).Str("eventType", eventType).Msg("SSE client gone")
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
