package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jonathan/content-guard/internal/generation"
)

// SSE event names sent by /generate/stream.
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// SSEWriter streams a generation run as Server-Sent Events. Events carry
// increasing ids starting at 1.
type SSEWriter struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	next int
}

// NewSSEWriter sends the stream headers. It fails before anything is written
// when the connection cannot be flushed.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if err := rc.Flush(); err != nil {
		for _, k := range []string{"Content-Type", "Cache-Control", "Connection", "X-Accel-Buffering"} {
			h.Del(k)
		}
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &SSEWriter{w: w, rc: rc, next: 1}, nil
}

// WriteEvent sends one named event with a JSON payload.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	id := strconv.Itoa(s.next)
	s.next++
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", id, event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteProgress forwards one controller event.
func (s *SSEWriter) WriteProgress(event generation.ProgressEvent) error {
	return s.WriteEvent(eventProgress, event)
}

// WriteError ends the stream with the error and its code.
func (s *SSEWriter) WriteError(err error) error {
	return s.WriteEvent(eventError, ErrorResponse{Error: err.Error(), Code: ErrorCode(err)})
}

// WriteComplete ends the stream with the accepted result.
func (s *SSEWriter) WriteComplete(resp GenerateResponse) error {
	return s.WriteEvent(eventComplete, resp)
}
