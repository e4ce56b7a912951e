// Package ui defines the chunk-ingestion contract between the bridge and a
// chat-UI rendering library.
//
// The rendering library is an opaque, asynchronous, possibly-unavailable
// collaborator. The bridge talks to it through [Sink] (single-shot complete
// messages) and, when supported, [ChunkSink] (incremental chunk ingestion
// for streaming bubbles). Capability is probed once per response via
// [SupportsChunking] and cached by the caller.
//
// Three call shapes exist, expressed as [Chunk] kinds:
//
//   - [ChunkPartial]: an incremental update to one streaming item, plus
//     optional message-level options (reasoning, chain of thought,
//     citations).
//   - [ChunkComplete]: closes one item, optionally marking the stream as
//     stopped by the user.
//   - [ChunkFinal]: the terminal emission carrying the full item array and
//     final message options. Exactly one final chunk is ingested per
//     response.
package ui
