package backend

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/noctics/central/pkg/api"
)

// parseCompleteResponse interprets a whole response body by mode and
// returns the assistant text. ok is false when the backend returned a
// well-formed response with no content, which is a valid result and never
// an error.
func parseCompleteResponse(mode Mode, body []byte) (text string, ok bool, err error) {
	switch mode {
	case ModeGenerate:
		return parseGenerateBody(body)
	case ModeChat:
		return parseChatBody(body)
	default:
		return parseOpenAIBody(body)
	}
}

// parseGenerateBody handles generate-mode bodies. Backends answer with a
// single object, but a body of newline-delimited objects (a stream the
// backend flushed whole) is accepted too: response fragments concatenate
// in order. A line carrying an error field aborts the parse.
func parseGenerateBody(body []byte) (string, bool, error) {
	var parts []string
	seen := false

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var chunk ndjsonChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			slog.Warn("skipping malformed generate response line",
				"error", err.Error(),
				"data", truncate(line, 200),
			)
			continue
		}
		if chunk.Error != "" {
			return "", false, api.NewServerError("backend reported error: " + chunk.Error)
		}
		if chunk.Response != "" {
			parts = append(parts, chunk.Response)
			seen = true
		}
	}

	return strings.Join(parts, ""), seen, nil
}

// parseChatBody handles chat-mode bodies: message.content, falling back to
// the response field when absent.
func parseChatBody(body []byte) (string, bool, error) {
	var obj struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		Response *string `json:"response"`
		Error    string  `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false, api.NewServerError("backend returned non-JSON response: " + err.Error())
	}
	if obj.Error != "" {
		return "", false, api.NewServerError("backend reported error: " + obj.Error)
	}
	if obj.Message != nil && obj.Message.Content != nil {
		return *obj.Message.Content, true, nil
	}
	if obj.Response != nil {
		return *obj.Response, true, nil
	}
	return "", false, nil
}

// parseOpenAIBody handles openai_compatible bodies. An absent key path
// (no choices, or a null content) is a valid "no content" result, never
// an error.
func parseOpenAIBody(body []byte) (string, bool, error) {
	var obj struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false, api.NewServerError("backend returned non-JSON response: " + err.Error())
	}
	if len(obj.Choices) == 0 || obj.Choices[0].Message.Content == nil {
		return "", false, nil
	}
	return *obj.Choices[0].Message.Content, true, nil
}
