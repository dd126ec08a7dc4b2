// Package memory provides an in-memory session recorder for testing and
// lightweight deployments. Records are lost when the process restarts.
// Optional eviction limits memory usage for long-running sessions.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/session"
)

// Recorder is an in-memory session recorder with an optional message cap.
type Recorder struct {
	mu      sync.RWMutex
	meta    session.Meta
	msgs    []api.Message
	maxSize int // 0 = unlimited
	closed  bool
}

// Ensure Recorder implements engine.Recorder at compile time.
var _ engine.Recorder = (*Recorder)(nil)

// New creates a new in-memory recorder. If maxSize is 0, the message
// log grows without limit. If maxSize > 0, the oldest message is
// dropped when the limit is reached.
func New(model string, sanitized bool, maxSize int) *Recorder {
	now := time.Now()
	return &Recorder{
		meta: session.Meta{
			ID:        api.NewSessionID(),
			Model:     model,
			Sanitized: sanitized,
			Created:   now,
			Updated:   now,
		},
		maxSize: maxSize,
	}
}

// Record appends a committed message to the in-memory log.
func (r *Recorder) Record(ctx context.Context, msg api.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return session.ErrClosed
	}

	if r.maxSize > 0 && len(r.msgs) >= r.maxSize {
		r.msgs = r.msgs[1:]
	}
	r.msgs = append(r.msgs, msg)

	if msg.Role == api.RoleAssistant {
		r.meta.Turns++
	}
	r.meta.Updated = time.Now()

	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []api.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Meta returns a snapshot of the session metadata.
func (r *Recorder) Meta() session.Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.meta
}

// SetTitle updates the session title. A custom title never gets
// overwritten by a derived one.
func (r *Recorder) SetTitle(title string, custom bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.meta.TitleCustom && !custom {
		return
	}
	r.meta.Title = title
	r.meta.TitleCustom = custom
	r.meta.Updated = time.Now()
}

// Close marks the recorder closed. Subsequent Record calls fail with
// session.ErrClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
