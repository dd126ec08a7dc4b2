package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/noctics/central/pkg/observability"
)

// parseSSEStream reads Server-Sent-Events frames from body and sends
// decoded StreamEvents on ch. The channel is NOT closed by this function;
// the caller is responsible for closing it.
//
// Frames are separated by a blank line. Within a frame, one or more
// "data:" lines are concatenated with an internal newline before
// interpretation. Comment lines (":") and non-data fields (event/id/retry)
// are ignored. A literal [DONE] data payload terminates the stream without
// being emitted as a delta.
func parseSSEStream(ctx context.Context, body io.Reader, ch chan<- StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimRight(scanner.Text(), "\r")

		// Blank line ends the frame.
		if line == "" {
			if len(data) == 0 {
				continue
			}
			payload := strings.TrimSpace(strings.Join(data, "\n"))
			data = data[:0]
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				ch <- StreamEvent{Final: true}
				return
			}
			piece, ok := extractSSEPiece(payload)
			if !ok {
				slog.Warn("skipping malformed SSE frame",
					"data", truncate(payload, 200),
				)
				observability.DecodeSkipsTotal.WithLabelValues("sse").Inc()
				continue
			}
			if piece != "" {
				ch <- StreamEvent{Delta: piece}
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimLeft(line[len("data:"):], " \t"))
		}
		// event:/id:/retry: fields carry nothing this engine uses.
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ch <- StreamEvent{Err: apiStreamReadError(err)}
	}
}

// extractSSEPiece interprets one assembled data payload. JSON payloads
// follow the content fallback chain choices[0].delta.content →
// choices[0].message.content → choices[0].text; a payload that is not
// JSON and does not look like a broken JSON object is treated as literal
// text. ok is false only for a JSON-looking payload that fails to parse,
// which the caller logs and skips.
func extractSSEPiece(payload string) (piece string, ok bool) {
	var evt sseEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		if strings.HasPrefix(strings.TrimSpace(payload), "{") {
			return "", false
		}
		return payload, true
	}

	if len(evt.Choices) == 0 {
		return "", true
	}
	choice := evt.Choices[0]
	if choice.Delta.Content != nil {
		return *choice.Delta.Content, true
	}
	if choice.Message.Content != nil {
		return *choice.Message.Content, true
	}
	if choice.Text != nil {
		return *choice.Text, true
	}
	return "", true
}
