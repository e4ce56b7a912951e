// Package bridge translates one agent response stream into ordered UI chunk
// commands.
//
// A Conversation owns the turn lifecycle: it sends the user message, drains
// the response stream event by event through a Translator, and guarantees
// that exactly one terminal emission reaches the sink no matter how the turn
// ends (terminal envelope, end of input, transport failure, or cancellation).
//
// The Translator is the per-turn state machine. It accumulates answer text,
// reasoning steps, tool activity, citations, and attachments; when the sink
// supports incremental ingestion it emits partial chunks as content arrives,
// batching text deltas and rate-limiting reasoning pushes, and otherwise it
// delivers everything as one message at the end.
package bridge
