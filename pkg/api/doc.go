// Package api defines the core data model for the Central conversation
// engine: conversation messages and roles, the structured error taxonomy,
// and session ID generation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. Error values serialize as {"error":{...}} on the HTTP
// façade, matching the shape OpenAI-compatible clients expect.
package api
