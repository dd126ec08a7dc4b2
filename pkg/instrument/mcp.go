package instrument

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mcpInstrument answers queries by invoking one configured tool on an
// MCP server. The query is passed as the tool's "query" argument and the
// text content of the result becomes the answer. The connection is
// established lazily on first use and reused afterwards.
type mcpInstrument struct {
	name      string
	url       string
	transport string
	tool      string
	headers   map[string]string

	mu      sync.Mutex
	session *mcp.ClientSession
}

func newMCPInstrument(cfg Config) (Instrument, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mcp instrument requires a url")
	}
	if cfg.Tool == "" {
		return nil, fmt.Errorf("mcp instrument requires a tool name")
	}
	switch cfg.Transport {
	case "", "streamable-http", "sse":
	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
	}

	return &mcpInstrument{
		name:      cfg.Name,
		url:       cfg.URL,
		transport: cfg.Transport,
		tool:      cfg.Tool,
		headers:   cfg.Headers,
	}, nil
}

func (m *mcpInstrument) Name() string {
	return m.name
}

func (m *mcpInstrument) Answer(ctx context.Context, query string) (string, error) {
	session, err := m.connect(ctx, nil)
	if err != nil {
		return "", err
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      m.tool,
		Arguments: map[string]any{"query": query},
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %q on %q: %w", m.tool, m.name, err)
	}

	text := joinTextContent(result)
	if result.IsError {
		return "", fmt.Errorf("tool %q reported an error: %s", m.tool, text)
	}
	return text, nil
}

// connect establishes the MCP session, performing the protocol
// handshake. An explicit transport bypasses URL-based transport creation
// for testing.
func (m *mcpInstrument) connect(ctx context.Context, transport mcp.Transport) (*mcp.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session, nil
	}

	client := mcp.NewClient(
		&mcp.Implementation{
			Name:    "central",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		transport = m.createTransport()
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", m.name, err)
	}
	m.session = session
	return session, nil
}

// createTransport creates an MCP transport from the configuration.
func (m *mcpInstrument) createTransport() mcp.Transport {
	httpClient := m.buildHTTPClient()

	if m.transport == "sse" {
		transport := &mcp.SSEClientTransport{Endpoint: m.url}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport
	}

	transport := &mcp.StreamableClientTransport{Endpoint: m.url}
	if httpClient != nil {
		transport.HTTPClient = httpClient
	}
	return transport
}

// buildHTTPClient returns an HTTP client that applies the configured
// static headers, or nil when none are set.
func (m *mcpInstrument) buildHTTPClient() *http.Client {
	if len(m.headers) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: m.headers,
		},
	}
}

func (m *mcpInstrument) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		err := m.session.Close()
		m.session = nil
		return err
	}
	return nil
}

// headerTransport is an http.RoundTripper that adds custom headers to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// joinTextContent concatenates the text parts of a tool result.
func joinTextContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
