package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/backend"
	"github.com/noctics/central/pkg/observability"
)

// DefaultHelperLabel is the envelope label used when none is configured.
const DefaultHelperLabel = "HELPER"

// SanitizeFunc rewrites user input before it enters history. It must be
// total and side-effect-free.
type SanitizeFunc func(string) string

// Recorder receives every committed message, user and assistant alike.
// The engine never reads records back; recording failures are logged and
// do not fail the turn.
type Recorder interface {
	Record(ctx context.Context, msg api.Message) error
}

// Config assembles an Engine. Endpoint, options, and helper label come
// from the resolved configuration; the engine never re-reads environment
// or files itself.
type Config struct {
	Endpoint backend.Endpoint
	Options  backend.Options

	// HelperLabel selects the envelope marker text ("HELPER" default,
	// "INSTRUMENT" alias). Detection always accepts the default label too.
	HelperLabel string

	// KeepReasoning disables reasoning stripping: <think> spans stay in
	// public output and committed history.
	KeepReasoning bool

	// Sanitize, when non-nil, is applied to user input before it is
	// appended to history.
	Sanitize SanitizeFunc

	// Recorder, when non-nil, receives each committed message.
	Recorder Recorder

	// Client overrides the transport client, for tests. When nil, a
	// client is built from Endpoint, Options.APIKey, and Timeout.
	Client *backend.Client

	// Timeout bounds non-streaming exchanges. Zero means the transport
	// default.
	Timeout time.Duration
}

// Engine is a stateful conversation engine. Not safe for concurrent use:
// an instance belongs to one conversation and one goroutine at a time.
type Engine struct {
	client   *backend.Client
	endpoint backend.Endpoint
	opts     backend.Options

	helperLabel   string
	keepReasoning bool
	sanitize      SanitizeFunc
	recorder      Recorder

	messages    []api.Message
	awaiting    bool
	helperQuery string
	lastRaw     string

	inFlight atomic.Bool
}

// New creates an Engine from the given configuration.
func New(cfg Config) *Engine {
	client := cfg.Client
	if client == nil {
		client = backend.NewClient(cfg.Endpoint, cfg.Options.APIKey, cfg.Timeout)
	}
	label := cfg.HelperLabel
	if label == "" {
		label = DefaultHelperLabel
	}
	return &Engine{
		client:        client,
		endpoint:      cfg.Endpoint,
		opts:          cfg.Options,
		helperLabel:   label,
		keepReasoning: cfg.KeepReasoning,
		sanitize:      cfg.Sanitize,
		recorder:      cfg.Recorder,
	}
}

// Messages returns a copy of the committed history.
func (e *Engine) Messages() []api.Message {
	out := make([]api.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// SetMessages replaces the history, e.g. when resuming a stored session.
func (e *Engine) SetMessages(msgs []api.Message) {
	e.messages = make([]api.Message, len(msgs))
	copy(e.messages, msgs)
}

// Reset clears the history, optionally seeding a system message.
func (e *Engine) Reset(system string) {
	e.messages = nil
	e.awaiting = false
	e.helperQuery = ""
	e.lastRaw = ""
	if system != "" {
		e.messages = append(e.messages, api.Message{Role: api.RoleSystem, Content: system})
	}
}

// Awaiting reports whether the most recently committed assistant reply
// posed a helper query that has not been answered yet.
func (e *Engine) Awaiting() bool {
	return e.awaiting
}

// HelperQuery returns the extracted body of the pending helper query, or
// the empty string when not awaiting.
func (e *Engine) HelperQuery() string {
	return e.helperQuery
}

// HelperLabel returns the configured envelope label.
func (e *Engine) HelperLabel() string {
	return e.helperLabel
}

// LastRaw returns the unfiltered text of the most recent assistant reply,
// including any suppressed reasoning spans. Kept for logging and envelope
// inspection; it never reaches public output.
func (e *Engine) LastRaw() string {
	return e.lastRaw
}

// Close releases the underlying transport client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Target is a sanitized snapshot of the configured endpoint. The API key
// itself is never included, only its presence.
type Target struct {
	URL           string       `json:"url"`
	Mode          backend.Mode `json:"mode"`
	Model         string       `json:"model"`
	Stream        bool         `json:"stream"`
	HelperLabel   string       `json:"helper_label"`
	KeepReasoning bool         `json:"keep_reasoning"`
	Sanitized     bool         `json:"sanitized"`
	HasAPIKey     bool         `json:"has_api_key"`
}

// DescribeTarget returns a sanitized snapshot of the configured backend.
func (e *Engine) DescribeTarget() Target {
	return Target{
		URL:           e.endpoint.URL,
		Mode:          e.endpoint.Mode,
		Model:         e.opts.Model,
		Stream:        e.opts.Stream,
		HelperLabel:   e.helperLabel,
		KeepReasoning: e.keepReasoning,
		Sanitized:     e.sanitize != nil,
		HasAPIKey:     e.opts.APIKey != "",
	}
}

// CheckConnectivity dials the endpoint host and fails when it is
// unreachable. Used by callers before the first turn to distinguish
// "backend down" from mid-conversation failures.
func (e *Engine) CheckConnectivity(timeout time.Duration) error {
	u, err := url.Parse(e.endpoint.URL)
	if err != nil || u.Hostname() == "" {
		return api.NewInvalidRequestError(fmt.Sprintf("invalid endpoint URL (no host): %s", e.endpoint.URL))
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(u.Hostname(), port), timeout)
	if err != nil {
		return backend.MapNetworkError(e.endpoint, err)
	}
	return conn.Close()
}

// record hands a committed message to the recorder, if any.
func (e *Engine) record(ctx context.Context, msg api.Message) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, msg); err != nil {
		slog.Warn("session record failed",
			"role", msg.Role,
			"error", err.Error(),
		)
		observability.SessionRecordsTotal.WithLabelValues(string(msg.Role), "error").Inc()
		return
	}
	observability.SessionRecordsTotal.WithLabelValues(string(msg.Role), "ok").Inc()
}
