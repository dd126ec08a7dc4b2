package backend

import (
	"net/url"
	"strings"
)

// Mode identifies which of the three wire shapes an endpoint speaks.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeChat     Mode = "chat"
	ModeOpenAI   Mode = "openai_compatible"
)

// Endpoint describes a configured inference backend. Mode is derived from
// the URL once, at resolution time, and never inferred mid-request.
type Endpoint struct {
	URL  string
	Mode Mode
}

// ResolveEndpoint derives the endpoint mode from the URL path: a path
// ending in /generate selects generate mode, /chat selects chat mode, and
// anything else (hosted chat-completions paths included) selects
// openai_compatible. The host plays no part in the decision.
func ResolveEndpoint(rawURL string) Endpoint {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")

	mode := ModeOpenAI
	switch {
	case strings.HasSuffix(path, "/generate"):
		mode = ModeGenerate
	case strings.HasSuffix(path, "/chat"):
		mode = ModeChat
	}
	return Endpoint{URL: rawURL, Mode: mode}
}
