package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTransportErrorCarriesStatusAndBody(t *testing.T) {
	err := NewTransportError(502, `{"error":"upstream down"}`, "backend server error")

	if err.Type != ErrorTypeTransport {
		t.Errorf("Type = %q, want %q", err.Type, ErrorTypeTransport)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Body != `{"error":"upstream down"}` {
		t.Errorf("Body = %q", err.Body)
	}
	if !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("Error() = %q, want HTTP status included", err.Error())
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want ErrorType
	}{
		{"invalid request", NewInvalidRequestError("bad input"), ErrorTypeInvalidRequest},
		{"not found", NewNotFoundError("missing"), ErrorTypeNotFound},
		{"server", NewServerError("boom"), ErrorTypeServerError},
		{"rate limit", NewTooManyRequestsError("slow down"), ErrorTypeTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.want)
			}
			if tt.err.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}

func TestErrorResponseSerialization(t *testing.T) {
	resp := ErrorResponse{Error: NewInvalidRequestError("input is required")}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inner, ok := decoded["error"]
	if !ok {
		t.Fatal("expected top-level error key")
	}
	if inner["type"] != "invalid_request" {
		t.Errorf("type = %v, want invalid_request", inner["type"])
	}
	if _, present := inner["status"]; present {
		t.Error("zero status should be omitted from JSON")
	}
}
