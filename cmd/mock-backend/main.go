// Command mock-backend runs a deterministic inference backend for
// development and integration testing. It speaks all three wire shapes
// central understands:
//
//	POST /api/generate        - NDJSON stream, Ollama generate style
//	POST /api/chat            - NDJSON stream, Ollama chat style
//	POST /v1/chat/completions - SSE stream, Chat Completions style
//
// Replies are derived from the prompt content so tests can trigger
// specific engine behavior: "think about" produces a reasoning span,
// "lookup:" produces a helper query envelope, and a result envelope in
// the input produces an answer built from the supplied result.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", handleGenerate)
	mux.HandleFunc("POST /api/chat", handleChat)
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Reply derivation ---

// deriveReply turns the latest user text into a deterministic reply.
func deriveReply(input string) string {
	lower := strings.ToLower(input)

	// A supplied helper result wins over everything else.
	if start := strings.Index(input, "RESULT]"); start >= 0 {
		if end := strings.Index(input[start:], "[/"); end > 0 {
			result := strings.TrimSpace(input[start+len("RESULT]") : start+end])
			return fmt.Sprintf("Based on the result, the answer is: %s", result)
		}
	}

	if idx := strings.Index(lower, "lookup:"); idx >= 0 {
		query := strings.TrimSpace(input[idx+len("lookup:"):])
		return fmt.Sprintf("[HELPER QUERY]%s[/HELPER QUERY]", query)
	}

	if strings.Contains(lower, "think about") {
		return "<think>The user wants a considered answer. Weighing options.</think>After consideration: yes."
	}

	if strings.Contains(lower, "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}

	return "Hello, nice day!"
}

// chunks splits a reply into streaming-sized pieces, keeping word
// boundaries so delta concatenation reproduces the reply exactly.
func chunks(reply string) []string {
	words := strings.SplitAfter(reply, " ")
	var out []string
	for i := 0; i < len(words); i += 2 {
		end := min(i+2, len(words))
		out = append(out, strings.Join(words[i:end], ""))
	}
	return out
}

func lastUserContent(msgs []chatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// --- Generate mode ---

func handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNDJSONError(w, "invalid request")
		return
	}

	reply := deriveReply(req.Prompt)
	if !req.Stream {
		writeNDJSON(w, map[string]any{"model": req.Model, "response": reply, "done": true})
		return
	}

	streamNDJSON(w, reply, func(piece string, done bool) map[string]any {
		return map[string]any{"model": req.Model, "response": piece, "done": done}
	})
}

// --- Chat mode ---

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNDJSONError(w, "invalid request")
		return
	}

	reply := deriveReply(lastUserContent(req.Messages))
	if !req.Stream {
		writeNDJSON(w, map[string]any{
			"model":   req.Model,
			"message": map[string]string{"role": "assistant", "content": reply},
			"done":    true,
		})
		return
	}

	streamNDJSON(w, reply, func(piece string, done bool) map[string]any {
		chunk := map[string]any{"model": req.Model, "done": done}
		if piece != "" {
			chunk["message"] = map[string]string{"role": "assistant", "content": piece}
		}
		return chunk
	})
}

func writeNDJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	json.NewEncoder(w).Encode(v)
}

func writeNDJSONError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func streamNDJSON(w http.ResponseWriter, reply string, frame func(piece string, done bool) map[string]any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	enc := json.NewEncoder(w)
	for _, piece := range chunks(reply) {
		enc.Encode(frame(piece, false))
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
	}
	enc.Encode(frame("", true))
	flusher.Flush()
}

// --- Chat Completions mode ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	reply := deriveReply(lastUserContent(req.Messages))

	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, piece := range chunks(reply) {
		chunk := map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion.chunk",
			"model":  model,
			"choices": []map[string]any{{
				"index": 0,
				"delta": map[string]string{"content": piece},
			}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
	}

	final := map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]string{},
			"finish_reason": "stop",
		}},
	}
	data, _ := json.Marshal(final)
	fmt.Fprintf(w, "data: %s\n\n", data)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
