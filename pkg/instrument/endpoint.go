package instrument

import (
	"context"
	"fmt"
	"strings"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/backend"
)

// endpointInstrument answers queries with a one-shot, non-streaming
// exchange against a secondary inference endpoint. The query becomes the
// sole user message; no history is carried between queries.
type endpointInstrument struct {
	name   string
	client *backend.Client
	opts   backend.Options
}

func newEndpointInstrument(cfg Config) (Instrument, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("endpoint instrument requires a url")
	}

	ep := backend.ResolveEndpoint(cfg.URL)
	return &endpointInstrument{
		name:   cfg.Name,
		client: backend.NewClient(ep, cfg.APIKey, 0),
		opts: backend.Options{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		},
	}, nil
}

func (e *endpointInstrument) Name() string {
	return e.name
}

func (e *endpointInstrument) Answer(ctx context.Context, query string) (string, error) {
	msgs := []api.Message{{Role: api.RoleUser, Content: query}}
	body := backend.BuildBody(msgs, e.client.Endpoint(), e.opts)

	text, ok, err := e.client.Complete(ctx, body)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("instrument endpoint returned no content")
	}
	return strings.TrimSpace(text), nil
}

func (e *endpointInstrument) Close() error {
	return e.client.Close()
}
