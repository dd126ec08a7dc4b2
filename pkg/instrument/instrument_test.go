package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeJSONBody(t *testing.T, r *http.Request, into any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	_, err := NewRegistry([]Config{
		{Name: "bad", Kind: "carrier-pigeon", URL: "http://localhost"},
	})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("error = %q, want mention of unknown kind", err)
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	_, err := NewRegistry([]Config{
		{Name: "lookup", Kind: "endpoint", URL: "http://localhost/api/generate"},
		{Name: "lookup", Kind: "endpoint", URL: "http://localhost/api/chat"},
	})
	if err == nil {
		t.Fatal("expected error for duplicate name")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error = %q, want mention of duplicate", err)
	}
}

func TestRegistryRejectsMissingName(t *testing.T) {
	_, err := NewRegistry([]Config{
		{Kind: "endpoint", URL: "http://localhost/api/generate"},
	})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestRegistryNames(t *testing.T) {
	r, err := NewRegistry([]Config{
		{Name: "zeta", Kind: "endpoint", URL: "http://localhost/api/generate"},
		{Name: "alpha", Kind: "endpoint", URL: "http://localhost/api/chat"},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer r.Close()

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names() = %v, want [alpha zeta]", names)
	}
}

func TestDispatchUnknownInstrument(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer r.Close()

	_, err = r.Dispatch(context.Background(), "nope", "query")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("Dispatch error = %v, want ErrUnknown", err)
	}
}

func TestEndpointInstrumentAnswer(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var body struct {
			Prompt string `json:"prompt"`
		}
		decodeJSONBody(t, r, &body)
		gotPrompt = body.Prompt
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": "  Paris  ", "done": true}`))
	}))
	defer srv.Close()

	r, err := NewRegistry([]Config{
		{Name: "lookup", Kind: "endpoint", URL: srv.URL + "/api/generate", Model: "m"},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer r.Close()

	answer, err := r.Dispatch(context.Background(), "lookup", "capital of France?")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if answer != "Paris" {
		t.Errorf("answer = %q, want %q (trimmed)", answer, "Paris")
	}
	if !strings.Contains(gotPrompt, "capital of France?") {
		t.Errorf("prompt %q does not carry the query", gotPrompt)
	}
}

func TestEndpointInstrumentTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r, err := NewRegistry([]Config{
		{Name: "lookup", Kind: "endpoint", URL: srv.URL + "/api/generate"},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer r.Close()

	_, err = r.Dispatch(context.Background(), "lookup", "anything")
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestEndpointInstrumentRequiresURL(t *testing.T) {
	_, err := NewRegistry([]Config{
		{Name: "lookup", Kind: "endpoint"},
	})
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}
