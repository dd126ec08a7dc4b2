// Package session provides recorder implementations that persist
// conversation turns as they are committed by the engine. Recorders are
// write-mostly: the engine owns the in-memory history and never reads it
// back from a recorder. Adapters (memory, jsonl, postgres) implement the
// engine.Recorder interface; this package contains only shared types and
// sentinel errors, not the interface itself.
package session

import (
	"errors"
	"time"
)

// Sentinel errors for session recorders.
var (
	// ErrClosed is returned when recording to a recorder that has been closed.
	ErrClosed = errors.New("session recorder closed")

	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
)

// Meta describes a recorded session. Turns counts assistant replies,
// so a completed exchange increments it by one.
type Meta struct {
	ID          string    `json:"id"`
	Model       string    `json:"model,omitempty"`
	Sanitized   bool      `json:"sanitized,omitempty"`
	Title       string    `json:"title,omitempty"`
	TitleCustom bool      `json:"title_custom,omitempty"`
	Turns       int       `json:"turns"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}
