package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/observability"
)

// parseNDJSONStream reads newline-delimited JSON objects from body and
// sends decoded StreamEvents on ch. The channel is NOT closed by this
// function; the caller is responsible for closing it.
//
// The scanner buffers bytes across reads and splits only on newline, so an
// incomplete trailing line is held back until more bytes arrive. Blank
// lines are discarded. Each complete line is parsed independently: a parse
// failure on one line is logged and skipped without affecting prior or
// subsequent lines. A line carrying an error field aborts the stream; a
// line marked done terminates it cleanly.
func parseNDJSONStream(ctx context.Context, mode Mode, body io.Reader, ch chan<- StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		// Check for context cancellation between lines. Cancellation is a
		// clean stop, not an error.
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ndjsonChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			slog.Warn("skipping malformed NDJSON line",
				"mode", mode,
				"error", err.Error(),
				"data", truncate(line, 200),
			)
			observability.DecodeSkipsTotal.WithLabelValues("ndjson").Inc()
			continue
		}

		if chunk.Error != "" {
			ch <- StreamEvent{Err: api.NewServerError("backend reported error: " + chunk.Error)}
			return
		}

		if text := chunk.text(mode); text != "" {
			ch <- StreamEvent{Delta: text}
		}

		if chunk.Done {
			ch <- StreamEvent{Final: true}
			return
		}
	}

	// Scanner error (e.g., connection dropped mid-stream).
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ch <- StreamEvent{Err: api.NewTransportError(0, "", "NDJSON stream read error: "+err.Error())}
	}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
