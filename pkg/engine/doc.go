// Package engine owns conversation state and turn orchestration.
//
// An Engine instance holds one conversation: an ordered message history,
// the configured endpoint and generation options, and the awaiting-result
// state of the helper/instrument envelope protocol. One turn sends the
// history through the payload builder and transport client, routes every
// streamed delta through the reasoning filter, and commits the fully
// filtered assistant reply to history. A failed or partial turn is never
// committed.
//
// The engine performs one outstanding exchange at a time and exposes no
// internal parallelism: an instance is owned exclusively by one goroutine
// for the duration of a turn, and concurrent conversations require
// separate instances. Starting a second turn while one is in flight is a
// caller error and is rejected rather than silently tolerated.
//
// The engine detects helper-query envelopes in committed replies but
// never dispatches them; answering a query is the caller's job, handed
// back in via ProcessResult.
package engine
