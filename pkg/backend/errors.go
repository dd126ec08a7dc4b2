package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/noctics/central/pkg/api"
)

// MapHTTPError converts a non-2xx HTTP response into a transport error
// carrying the status code and the (truncated) response body. The body is
// parsed for a structured error message when one is present.
func MapHTTPError(resp *http.Response) *api.Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	body := string(data)

	message := extractErrorMessage(data)
	if message == "" {
		message = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}

	// Hints for the two most common misconfigurations.
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		message += ": unauthorized (API key configured?)"
	case http.StatusNotFound:
		message += ": endpoint not found (URL path invalid?)"
	}

	return api.NewTransportError(resp.StatusCode, body, message)
}

// MapNetworkError converts a connection-level failure (refused, timeout,
// DNS) into a transport error with no HTTP status.
func MapNetworkError(ep Endpoint, err error) *api.Error {
	return api.NewTransportError(0, "", fmt.Sprintf("failed to reach backend at %s: %s", ep.URL, err.Error()))
}

// apiStreamReadError wraps a mid-stream read failure.
func apiStreamReadError(err error) *api.Error {
	return api.NewTransportError(0, "", "stream read error: "+err.Error())
}

// extractErrorMessage pulls a human-readable message out of an error body.
// Both the OpenAI shape {"error":{"message":...}} and the Ollama shape
// {"error":"..."} are recognized.
func extractErrorMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var structured struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &structured); err == nil && structured.Error.Message != "" {
		return structured.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}

	return ""
}
