// Package backend turns conversation state into wire requests against
// heterogeneous inference backends and consumes their streaming or
// whole-body responses.
//
// Three endpoint modes are supported, derived deterministically from the
// endpoint URL:
//
//   - generate: Ollama-style /api/generate with a flattened prompt and
//     NDJSON streaming
//   - chat: Ollama-style /api/chat with a full messages array and NDJSON
//     streaming
//   - openai_compatible: Chat Completions with SSE streaming
//
// The Client performs the HTTP exchange, selects the decoder by mode, and
// yields either one complete string or a lazy ordered sequence of text
// deltas. Malformed individual stream units are logged and skipped; a
// non-2xx status aborts the exchange with a transport error carrying
// status and body.
package backend
