// Package jsonl provides a file-backed session recorder. Each session
// writes one append-only JSON Lines file under a date-partitioned
// directory, plus a small metadata sidecar that is rewritten on every
// update:
//
//	<root>/2026-08-30/session-20260830T141502.jsonl
//	<root>/2026-08-30/session-20260830T141502.meta.json
//
// The line format keeps one committed message per line so a session can
// be replayed or grepped without loading the whole file.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/session"
)

// record is the JSONL line shape for one committed message.
type record struct {
	Role    api.Role  `json:"role"`
	Content string    `json:"content"`
	Turn    int       `json:"turn"`
	Time    time.Time `json:"ts"`
}

// Recorder appends committed messages to a session JSONL file.
type Recorder struct {
	mu       sync.Mutex
	meta     session.Meta
	path     string
	metaPath string
	file     *os.File
	records  int
	closed   bool
}

// Ensure Recorder implements engine.Recorder at compile time.
var _ engine.Recorder = (*Recorder)(nil)

// New creates a session file under root, partitioned by date. The file
// and its metadata sidecar are created immediately so an interrupted
// session still leaves a discoverable trace.
func New(root, model string, sanitized bool) (*Recorder, error) {
	now := time.Now()
	dir := filepath.Join(root, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	// Suffix on collision so two sessions starting in the same second
	// both get a file.
	stamp := "session-" + now.Format("20060102T150405")
	var base, path string
	var f *os.File
	for i := 0; ; i++ {
		base = stamp
		if i > 0 {
			base = fmt.Sprintf("%s-%d", stamp, i+1)
		}
		path = filepath.Join(dir, base+".jsonl")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) || i >= 100 {
			return nil, fmt.Errorf("creating session file: %w", err)
		}
	}

	r := &Recorder{
		meta: session.Meta{
			ID:        api.NewSessionID(),
			Model:     model,
			Sanitized: sanitized,
			Created:   now,
			Updated:   now,
		},
		path:     path,
		metaPath: filepath.Join(dir, base+".meta.json"),
		file:     f,
	}

	if err := r.writeMeta(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	return r, nil
}

// Record appends one message line and refreshes the metadata sidecar.
func (r *Recorder) Record(ctx context.Context, msg api.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return session.ErrClosed
	}

	if msg.Role == api.RoleAssistant {
		r.meta.Turns++
	}
	r.meta.Updated = time.Now()

	line, err := json.Marshal(record{
		Role:    msg.Role,
		Content: msg.Content,
		Turn:    r.meta.Turns,
		Time:    r.meta.Updated,
	})
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}

	if _, err := r.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	r.records++

	return r.writeMeta()
}

// Path returns the session file path.
func (r *Recorder) Path() string {
	return r.path
}

// Meta returns a snapshot of the session metadata.
func (r *Recorder) Meta() session.Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// SetTitle updates the session title and rewrites the sidecar. A custom
// title never gets overwritten by a derived one.
func (r *Recorder) SetTitle(title string, custom bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.meta.TitleCustom && !custom {
		return nil
	}
	r.meta.Title = title
	r.meta.TitleCustom = custom
	r.meta.Updated = time.Now()
	return r.writeMeta()
}

// DeleteIfEmpty removes the session file and sidecar when nothing was
// recorded, so abandoned sessions don't litter the log directory. It
// reports whether the files were removed.
func (r *Recorder) DeleteIfEmpty() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records > 0 {
		return false, nil
	}

	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	r.closed = true

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("removing session file: %w", err)
	}
	if err := os.Remove(r.metaPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("removing session metadata: %w", err)
	}
	return true, nil
}

// Close flushes and closes the session file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// writeMeta rewrites the metadata sidecar atomically via a temp file.
// Callers must hold r.mu.
func (r *Recorder) writeMeta() error {
	data, err := json.MarshalIndent(r.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session metadata: %w", err)
	}

	tmp := r.metaPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	if err := os.Rename(tmp, r.metaPath); err != nil {
		return fmt.Errorf("replacing session metadata: %w", err)
	}
	return nil
}

// Load reads back every record from a session file. Malformed lines are
// skipped rather than failing the whole read.
func Load(path string) ([]api.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close()

	var msgs []api.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		msgs = append(msgs, api.Message{Role: rec.Role, Content: rec.Content})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning session file: %w", err)
	}
	return msgs, nil
}
