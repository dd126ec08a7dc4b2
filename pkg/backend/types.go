package backend

import "github.com/noctics/central/pkg/api"

// Options holds generation tuning for a configured endpoint. All tuning
// fields are optional: a nil pointer (or empty string) means the field is
// omitted from the payload entirely, not sent as zero.
type Options struct {
	// Model is the configured model identifier sent to the backend.
	Model string

	// ModelOverride, when set, takes priority over both the alias table
	// and the configured model for openai_compatible endpoints.
	ModelOverride string

	Temperature *float64
	MaxTokens   *int
	Stream      bool

	// Ollama-style runtime tuning, nested under the payload's "options"
	// sub-object for generate/chat modes. Silently ignored in
	// openai_compatible mode.
	NumThread *int
	NumCtx    *int
	NumBatch  *int
	KeepAlive string

	// APIKey, when non-empty, is sent as a bearer Authorization header on
	// every request in all three modes.
	APIKey string
}

// StreamEvent is one decoded unit of a streaming response: a text delta,
// the terminal marker, or a mid-stream failure. Events arrive in strict
// backend order.
type StreamEvent struct {
	Delta string
	Final bool
	Err   error
}

// generateBody is the wire shape for generate-mode requests. The full
// messages array is not sent in this mode; history is flattened into the
// prompt instead.
type generateBody struct {
	Model   string         `json:"model"`
	System  string         `json:"system"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// chatBody is the wire shape for chat-mode requests.
type chatBody struct {
	Model    string         `json:"model"`
	Messages []api.Message  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// openAIBody is the wire shape for openai_compatible requests.
type openAIBody struct {
	Model       string        `json:"model"`
	Messages    []api.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ndjsonChunk is one line of an NDJSON stream from a generate or chat
// endpoint.
type ndjsonChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
}

// text extracts the delta text from the chunk for the given mode.
func (c *ndjsonChunk) text(mode Mode) string {
	if mode == ModeChat && c.Message != nil && c.Message.Content != "" {
		return c.Message.Content
	}
	return c.Response
}

// sseEvent is the JSON payload of one Chat Completions SSE frame. Pointers
// distinguish "absent" from "empty" along the content fallback chain.
type sseEvent struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		Text *string `json:"text"`
	} `json:"choices"`
}
