// Package integration tests the full central stack in-process: the HTTP
// daemon, engine, transport client, and decoders wired against a mock
// inference backend, all via net/http/httptest.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/noctics/central/pkg/backend"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/server"
	"github.com/noctics/central/pkg/session/memory"
)

// testEnv is the shared generate-mode environment for most tests.
var testEnv *TestEnvironment

// TestEnvironment holds the central daemon and mock backend for testing.
type TestEnvironment struct {
	CentralServer *httptest.Server
	MockBackend   *httptest.Server
	Engine        *engine.Engine
	Recorder      *memory.Recorder
}

func TestMain(m *testing.M) {
	testEnv = setupEnv("/api/generate")
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupEnv wires mock backend -> engine -> daemon for the endpoint mode
// selected by the path suffix.
func setupEnv(path string) *TestEnvironment {
	mock := httptest.NewServer(http.HandlerFunc(mockBackendHandler))

	rec := memory.New("mock-model", false, 100)
	eng := engine.New(engine.Config{
		Endpoint: backend.ResolveEndpoint(mock.URL + path),
		Options:  backend.Options{Model: "mock-model", Stream: true},
		Recorder: rec,
	})

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.NewServer(server.NewHandlers(eng, nil), server.WithLogger(quiet))

	return &TestEnvironment{
		CentralServer: httptest.NewServer(srv.Handler()),
		MockBackend:   mock,
		Engine:        eng,
		Recorder:      rec,
	}
}

func (env *TestEnvironment) Teardown() {
	if env.CentralServer != nil {
		env.CentralServer.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
	if env.Engine != nil {
		env.Engine.Close()
	}
}

func (env *TestEnvironment) BaseURL() string {
	return env.CentralServer.URL
}

// newEnv builds a private environment for tests that need a different
// endpoint mode or want to mutate history freely.
func newEnv(t *testing.T, path string) *TestEnvironment {
	t.Helper()
	env := setupEnv(path)
	t.Cleanup(env.Teardown)
	return env
}

// --- Mock backend ---

// mockBackendHandler answers all three wire shapes deterministically.
func mockBackendHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/generate":
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		reply := deriveReply(req.Prompt)
		if !req.Stream {
			json.NewEncoder(w).Encode(map[string]any{"response": reply, "done": true})
			return
		}
		for _, piece := range pieces(reply) {
			fmt.Fprintf(w, `{"response":%q}`+"\n", piece)
		}
		fmt.Fprintln(w, `{"done":true}`)

	case "/api/chat":
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var last string
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				last = req.Messages[i].Content
				break
			}
		}
		reply := deriveReply(last)
		if !req.Stream {
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": reply},
				"done":    true,
			})
			return
		}
		for _, piece := range pieces(reply) {
			frame, _ := json.Marshal(map[string]any{
				"message": map[string]string{"role": "assistant", "content": piece},
			})
			w.Write(append(frame, '\n'))
		}
		fmt.Fprintln(w, `{"done":true}`)

	case "/v1/chat/completions":
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var last string
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				last = req.Messages[i].Content
				break
			}
		}
		reply := deriveReply(last)
		if !req.Stream {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{
					"message": map[string]string{"role": "assistant", "content": reply},
				}},
			})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range pieces(reply) {
			frame, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{
					"delta": map[string]string{"content": piece},
				}},
			})
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")

	default:
		http.NotFound(w, r)
	}
}

// deriveReply mirrors the mock-backend command's prompt rules.
func deriveReply(input string) string {
	lower := strings.ToLower(input)

	if start := strings.Index(input, "RESULT]"); start >= 0 {
		if end := strings.Index(input[start:], "[/"); end > 0 {
			result := strings.TrimSpace(input[start+len("RESULT]") : start+end])
			return "Based on the result, the answer is: " + result
		}
	}
	if idx := strings.Index(lower, "lookup:"); idx >= 0 {
		query := strings.TrimSpace(input[idx+len("lookup:"):])
		return "[HELPER QUERY]" + query + "[/HELPER QUERY]"
	}
	if strings.Contains(lower, "think about") {
		return "<think>Weighing options carefully.</think>After consideration: yes."
	}
	return "Hello, nice day!"
}

// pieces splits a reply into two streaming chunks.
func pieces(reply string) []string {
	mid := len(reply) / 2
	if mid == 0 {
		return []string{reply}
	}
	return []string{reply[:mid], reply[mid:]}
}

// --- HTTP helpers ---

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if into != nil {
		decodeJSON(t, resp, into)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// turnResult mirrors the daemon's turn response body.
type turnResult struct {
	Reply       string `json:"reply"`
	Awaiting    bool   `json:"awaiting"`
	HelperQuery string `json:"helper_query"`
}

// runTurn posts a non-streaming turn and fails the test on non-200.
func runTurn(t *testing.T, base, text string) turnResult {
	t.Helper()
	resp := postJSON(t, base+"/v1/turn", map[string]any{"text": text, "stream": false})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("turn status = %d: %s", resp.StatusCode, body)
	}
	var out turnResult
	decodeJSON(t, resp, &out)
	return out
}

// sseEvent is one parsed SSE frame from the daemon.
type sseEvent struct {
	Name string
	Data string
}

// streamTurn posts a streaming turn and returns the parsed events.
func streamTurn(t *testing.T, base, text string) []sseEvent {
	t.Helper()

	data, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequest(http.MethodPost, base+"/v1/turn", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/turn: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("streaming turn status = %d: %s", resp.StatusCode, body)
	}

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case line == "data: [DONE]":
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Name != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading SSE stream: %v", err)
	}
	return events
}
