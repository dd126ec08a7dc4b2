package engine

import (
	"context"
	"strings"
	"time"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/backend"
	"github.com/noctics/central/pkg/marker"
	"github.com/noctics/central/pkg/observability"
)

// resultFollowUp is the fixed instruction appended after a helper-result
// envelope so the model uses the supplied result instead of re-asking.
const resultFollowUp = "The requested result is provided above in the result envelope. " +
	"Use it to answer the original question directly. Do not mention the envelope " +
	"or ask for another result unless the one provided is insufficient."

// OneTurn performs one conversation turn: the user text is sanitized if a
// sanitizer is configured, appended to history, and sent to the backend.
// Every public delta is passed to onDelta in arrival order when streaming.
// On success the fully filtered assistant reply is committed and returned.
//
// If the exchange fails, the appended user message stays in history, no
// assistant message is committed, and the error propagates unmodified; no
// retries happen at this layer. Caller-initiated cancellation is a clean
// stop: whatever was already delivered to onDelta stands as the record.
//
// Exactly one turn may be in flight per instance; a concurrent second
// call is rejected as caller misuse.
func (e *Engine) OneTurn(ctx context.Context, userText string, onDelta func(string)) (string, error) {
	if e.sanitize != nil {
		userText = e.sanitize(userText)
	}
	return e.run(ctx, userText, false, onDelta)
}

// ProcessResult hands an externally obtained helper result back to the
// conversation. The result is wrapped in a result envelope, appended as a
// user message together with the fixed follow-up instruction, and a
// normal turn runs on the combined content. The awaiting flag clears by
// construction. Calling this while not awaiting is legal and behaves as
// an ordinary turn with the wrapped content.
func (e *Engine) ProcessResult(ctx context.Context, resultText string, onDelta func(string)) (string, error) {
	wrapped := marker.ResultPair(e.helperLabel).Wrap(resultText)
	return e.run(ctx, wrapped+"\n\n"+resultFollowUp, true, onDelta)
}

// RecordTurn commits a user/assistant pair without calling the backend,
// applying the same sanitize, filter, and envelope handling as a live
// turn. Used when the assistant text was obtained out of band.
func (e *Engine) RecordTurn(ctx context.Context, userText, assistantText string) {
	if e.sanitize != nil {
		userText = e.sanitize(userText)
	}
	e.commitUser(ctx, userText)
	e.commitAssistant(ctx, assistantText)
}

// run executes the exchange for already-prepared user content. A result
// hand-off clears the awaiting state, but only once the in-flight slot is
// won: a rejected concurrent call must leave the pending query intact.
func (e *Engine) run(ctx context.Context, userText string, resolvesQuery bool, onDelta func(string)) (string, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return "", api.NewInvalidRequestError("a turn is already in flight on this engine instance")
	}
	defer e.inFlight.Store(false)

	if resolvesQuery {
		e.awaiting = false
		e.helperQuery = ""
	}

	mode := string(e.endpoint.Mode)
	start := time.Now()
	defer func() {
		observability.TurnDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	e.commitUser(ctx, userText)

	payload := backend.BuildBody(e.messages, e.endpoint, e.opts)

	var raw string
	if e.opts.Stream {
		text, err := e.streamTurn(ctx, payload, onDelta)
		if err != nil {
			observability.TurnsTotal.WithLabelValues(mode, "error").Inc()
			return "", err
		}
		if text == "" {
			// Stream ended without a single unit of text: nothing to commit.
			observability.TurnsTotal.WithLabelValues(mode, "no_content").Inc()
			return "", nil
		}
		raw = text
	} else {
		text, ok, err := e.client.Complete(ctx, payload)
		if err != nil {
			observability.TurnsTotal.WithLabelValues(mode, "error").Inc()
			return "", err
		}
		if !ok {
			// Valid no-content reply: nothing to commit.
			observability.TurnsTotal.WithLabelValues(mode, "no_content").Inc()
			return "", nil
		}
		raw = text
	}

	observability.TurnsTotal.WithLabelValues(mode, "ok").Inc()
	return e.commitAssistant(ctx, raw), nil
}

// streamTurn consumes the streamed sequence, routing every unit through
// the reasoning filter and invoking onDelta for each public delta. It
// returns the raw assembled text. A mid-stream error event aborts the
// turn; channel close without one (including cancellation) is a clean
// end of stream.
func (e *Engine) streamTurn(ctx context.Context, payload any, onDelta func(string)) (string, error) {
	ch, err := e.client.Stream(ctx, payload)
	if err != nil {
		return "", err
	}

	filter := marker.NewFilter(marker.Reasoning)
	emit := func(s string) {
		if s != "" && onDelta != nil {
			onDelta(s)
		}
	}

	for ev := range ch {
		if ev.Err != nil {
			return "", ev.Err
		}
		if ev.Delta == "" {
			continue
		}
		if e.keepReasoning {
			filter.Feed(ev.Delta) // raw log only
			emit(ev.Delta)
			continue
		}
		emit(filter.Feed(ev.Delta))
	}

	if !e.keepReasoning {
		emit(filter.Close())
	}
	return filter.Raw(), nil
}

// commitUser appends and records a user message.
func (e *Engine) commitUser(ctx context.Context, text string) {
	msg := api.Message{Role: api.RoleUser, Content: text}
	e.messages = append(e.messages, msg)
	e.record(ctx, msg)
}

// commitAssistant filters, appends, and records an assistant reply, then
// scans the raw text for a helper-query envelope. Returns the committed
// public text.
func (e *Engine) commitAssistant(ctx context.Context, raw string) string {
	e.lastRaw = raw

	filtered := raw
	if !e.keepReasoning {
		filtered = marker.Strip(marker.Reasoning, raw)
	}
	filtered = strings.TrimSpace(filtered)

	msg := api.Message{Role: api.RoleAssistant, Content: filtered}
	e.messages = append(e.messages, msg)
	e.record(ctx, msg)

	// Envelope detection works on the raw text, independent of
	// reasoning-filter suppression.
	e.detectHelperQuery(raw)
	return filtered
}

// detectHelperQuery scans a committed reply for a helper-query envelope.
// Both the configured label and the default label are accepted.
func (e *Engine) detectHelperQuery(raw string) {
	for _, label := range e.queryLabels() {
		if body, ok := marker.Extract(marker.QueryPair(label), raw); ok {
			e.awaiting = true
			e.helperQuery = body
			observability.HelperQueriesTotal.Inc()
			return
		}
	}
	e.awaiting = false
	e.helperQuery = ""
}

func (e *Engine) queryLabels() []string {
	if e.helperLabel == DefaultHelperLabel {
		return []string{DefaultHelperLabel}
	}
	return []string{e.helperLabel, DefaultHelperLabel}
}

// WantsHelper reports whether assistant text is asking for a helper, by
// envelope marker or by the loose phrasing some models fall back to.
func WantsHelper(label, text string) bool {
	if text == "" {
		return false
	}
	if marker.Contains(marker.QueryPair(DefaultHelperLabel), text) {
		return true
	}
	if label != "" && marker.Contains(marker.QueryPair(label), text) {
		return true
	}
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "requires a helper") &&
		strings.Contains(lowered, "paste a helper response")
}
