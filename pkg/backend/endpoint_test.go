package backend

import "testing"

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		url  string
		want Mode
	}{
		{"http://127.0.0.1:11434/api/generate", ModeGenerate},
		{"http://127.0.0.1:11434/api/chat", ModeChat},
		{"http://localhost:1234/v1/chat/completions", ModeOpenAI},
		{"https://api.openai.com/v1/chat/completions", ModeOpenAI},
		// Mode derives from the path, independent of host.
		{"https://example.com/api/generate", ModeGenerate},
		{"https://example.com/api/chat/", ModeChat},
		{"http://localhost:8080/", ModeOpenAI},
		{"http://localhost:8080", ModeOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ep := ResolveEndpoint(tt.url)
			if ep.Mode != tt.want {
				t.Errorf("ResolveEndpoint(%q).Mode = %q, want %q", tt.url, ep.Mode, tt.want)
			}
			if ep.URL != tt.url {
				t.Errorf("URL = %q, want unchanged %q", ep.URL, tt.url)
			}
		})
	}
}
