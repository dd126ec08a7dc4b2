// Package instrument provides caller-side dispatch for helper queries.
// The engine only detects a query envelope and flags the conversation as
// awaiting a result; it never dispatches anything itself. Callers that
// want automatic answering configure instruments here, route the query
// through Dispatch, and feed the answer back via ProcessResult.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/noctics/central/pkg/observability"
)

// ErrUnknown is returned by Dispatch when no instrument with the
// requested name is configured.
var ErrUnknown = errors.New("unknown instrument")

// Instrument answers a single helper query with a single text result.
type Instrument interface {
	// Name is the logical name used to select this instrument.
	Name() string

	// Answer resolves one query to a text result. Errors are returned
	// to the caller; an instrument never writes into the conversation.
	Answer(ctx context.Context, query string) (string, error)

	// Close releases any connections held by the instrument.
	Close() error
}

// Config describes one configured instrument.
type Config struct {
	// Name is the logical name for this instrument.
	Name string `yaml:"name"`

	// Kind selects the implementation: "endpoint" or "mcp".
	Kind string `yaml:"kind"`

	// URL is the target endpoint or MCP server URL.
	URL string `yaml:"url"`

	// Model is the model identifier for endpoint instruments.
	Model string `yaml:"model,omitempty"`

	// APIKey authenticates endpoint instruments.
	APIKey string `yaml:"api_key,omitempty"`

	// Tool is the tool name an MCP instrument invokes.
	Tool string `yaml:"tool,omitempty"`

	// Transport selects the MCP transport: "sse" or "streamable-http"
	// (default).
	Transport string `yaml:"transport,omitempty"`

	// Headers contains additional HTTP headers for MCP instruments,
	// typically used for authentication.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// constructor builds an instrument from its configuration. The kind
// table is fixed; unknown kinds are rejected when the registry is built,
// not at first use.
type constructor func(cfg Config) (Instrument, error)

var kinds = map[string]constructor{
	"endpoint": newEndpointInstrument,
	"mcp":      newMCPInstrument,
}

// Registry holds the configured instruments, keyed by name.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewRegistry validates every configuration entry and constructs its
// instrument. Unknown kinds and duplicate names fail construction.
func NewRegistry(cfgs []Config) (*Registry, error) {
	r := &Registry{instruments: make(map[string]Instrument)}

	for _, cfg := range cfgs {
		if cfg.Name == "" {
			r.Close()
			return nil, fmt.Errorf("instrument with kind %q has no name", cfg.Kind)
		}
		if _, dup := r.instruments[cfg.Name]; dup {
			r.Close()
			return nil, fmt.Errorf("duplicate instrument name %q", cfg.Name)
		}

		build, ok := kinds[cfg.Kind]
		if !ok {
			r.Close()
			return nil, fmt.Errorf("instrument %q: unknown kind %q", cfg.Name, cfg.Kind)
		}

		inst, err := build(cfg)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("instrument %q: %w", cfg.Name, err)
		}
		r.instruments[cfg.Name] = inst
	}

	return r, nil
}

// Get returns the named instrument.
func (r *Registry) Get(name string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[name]
	return inst, ok
}

// Names returns the configured instrument names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instruments))
	for name := range r.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch routes a query to the named instrument and returns its
// answer.
func (r *Registry) Dispatch(ctx context.Context, name, query string) (string, error) {
	inst, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	answer, err := inst.Answer(ctx, query)
	if err != nil {
		observability.InstrumentDispatchesTotal.WithLabelValues(name, "error").Inc()
		return "", err
	}
	observability.InstrumentDispatchesTotal.WithLabelValues(name, "ok").Inc()
	return answer, nil
}

// Close closes every instrument. The first error wins.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, inst := range r.instruments {
		if err := inst.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing instrument %q: %w", name, err)
		}
	}
	r.instruments = make(map[string]Instrument)
	return firstErr
}
