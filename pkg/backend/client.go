package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/debug"
	"github.com/noctics/central/pkg/observability"
)

// Client performs HTTP exchanges against one configured inference
// endpoint. The mode is fixed at construction from the endpoint URL and
// never inferred mid-request.
type Client struct {
	httpClient *http.Client
	endpoint   Endpoint
	apiKey     string
}

// NewClient creates a Client for the given endpoint. A zero timeout
// defaults to 120s; the timeout applies only to non-streaming exchanges.
func NewClient(ep Endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: ep,
		apiKey:   apiKey,
	}
}

// Endpoint returns the configured endpoint descriptor.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Complete performs a non-streaming exchange and parses the whole body by
// mode. ok is false for a valid "no content" response.
func (c *Client) Complete(ctx context.Context, payload any) (text string, ok bool, err error) {
	httpResp, err := c.post(ctx, payload, false)
	if err != nil {
		return "", false, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.countTransportError(httpResp.StatusCode)
		return "", false, MapHTTPError(httpResp)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", false, apiStreamReadError(err)
	}

	return parseCompleteResponse(c.endpoint.Mode, body)
}

// Stream performs a streaming exchange. It returns a channel of
// StreamEvents in strict arrival order; the channel is closed by the
// producer when the stream completes, errors, or the context is
// cancelled. Cancellation closes the underlying connection and ends the
// sequence cleanly rather than as a failure.
//
// The decoder is selected by mode: NDJSON for generate/chat, SSE for
// openai_compatible. The HTTP client timeout is not applied to streams,
// since a stream can legitimately outlast any fixed timeout; lifecycle
// control relies on the context instead.
func (c *Client) Stream(ctx context.Context, payload any) (<-chan StreamEvent, error) {
	httpResp, err := c.post(ctx, payload, true)
	if err != nil {
		return nil, err
	}

	// Check the status before starting the stream so a failed exchange
	// surfaces as a transport error, never as an empty sequence.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		c.countTransportError(httpResp.StatusCode)
		return nil, MapHTTPError(httpResp)
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		if c.endpoint.Mode == ModeOpenAI {
			parseSSEStream(ctx, httpResp.Body, ch)
		} else {
			parseNDJSONStream(ctx, c.endpoint.Mode, httpResp.Body, ch)
		}
	}()

	return ch, nil
}

// post marshals the payload and performs the POST. Streaming requests use
// a client without timeout and advertise text/event-stream.
func (c *Client) post(ctx context.Context, payload any, stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, api.NewServerError("failed to marshal request: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError("failed to create HTTP request: " + err.Error())
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	client := c.httpClient
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		client = &http.Client{Transport: c.httpClient.Transport}
	}

	debug.Log("backend", "exchange",
		"url", c.endpoint.URL,
		"mode", c.endpoint.Mode,
		"stream", stream,
		"bytes", len(body),
	)
	if debug.TraceIsEnabled("backend") {
		debug.Raw("backend", string(body))
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		c.countTransportError(0)
		return nil, MapNetworkError(c.endpoint, err)
	}
	return httpResp, nil
}

// countTransportError records a failed exchange. A zero status means the
// connection itself failed.
func (c *Client) countTransportError(status int) {
	class := "net"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	observability.TransportErrorsTotal.WithLabelValues(string(c.endpoint.Mode), class).Inc()
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
