// Package agentwire bridges the A2A agent protocol to chat-UI chunk ingestion.
//
// agentwire is the client side of an A2A (Agent-to-Agent) conversation: it
// consumes the JSON-RPC-over-SSE event stream produced by an agent server and
// incrementally translates it into the discrete message/chunk commands a
// chat-UI rendering library needs to draw streaming bubbles, collapsible
// reasoning panels, and chain-of-thought step lists.
//
// The interesting work lives in the subpackages:
//
//   - a2a: protocol types, the tolerant SSE frame parser, extension metadata
//     extraction, and the JSON-RPC client.
//   - ui: the sink contract - chunk command types and the capability-probed
//     ingestion interfaces.
//   - bridge: the streaming translation state machine, debounced flushing,
//     exactly-once finalization, and cancellation coordination.
//   - agui: a sink implementation that renders chunk commands as AG-UI
//     protocol events over SSE.
//   - card: agent-card discovery and schema validation.
//   - proxy: thin pass-through HTTP endpoints for browsers that cannot reach
//     agent servers directly.
//
// This root package holds the shared error taxonomy used across the bridge.
package agentwire
