package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// SSE event names emitted by streaming turn endpoints.
const (
	eventDelta     = "delta"
	eventCompleted = "completed"
	eventError     = "error"
)

// writerState tracks the state of an sseWriter.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one event written
	writerCompleted                    // terminal event sent
)

// sseWriter emits Server-Sent Events for a streaming turn. On the first
// event it sets the SSE headers; after a terminal event (completed or
// error) it appends a data: [DONE] line and refuses further writes.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// writeEvent sends a single SSE event:
//
//	event: {name}\n
//	data: {json}\n
//	\n
//
// After a terminal event (completed, error) it also sends data: [DONE]
// and marks the writer completed.
func (s *sseWriter) writeEvent(name string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write event: stream is completed")
	}

	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if name == eventCompleted || name == eventError {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("failed to write [DONE]: %w", err)
		}
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("failed to flush [DONE]: %w", err)
		}
		s.state = writerCompleted
	}

	return nil
}

// started reports whether at least one event has been written. Used to
// decide between a plain HTTP error response and an in-stream error event.
func (s *sseWriter) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}
