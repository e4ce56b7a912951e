// Package a2a provides the shared protocol types and transport for the A2A
// (Agent-to-Agent) protocol as consumed by the bridge.
//
// A2A is an open protocol for communication between AI agent systems. It uses
// JSON-RPC 2.0 over HTTP(S) with streaming via Server-Sent Events (SSE). This
// package covers the client side of one conversation turn:
//
//   - Core types: [Message], [Task], [TaskState], [Artifact], and the
//     [Part] sum type decoded by [UnmarshalPart].
//   - Stream events: the [Event] closed set ([StatusUpdate],
//     [ArtifactUpdate], [TaskSnapshot], [MessageEvent]) decoded by
//     [UnmarshalEvent].
//   - [StreamReader]: a tolerant SSE frame parser that retains partial
//     trailing lines, skips malformed payloads, and surfaces backend
//     exception dumps as one-time diagnostics instead of dropping them.
//   - [ExtractExtensions]: pure, total extraction of well-known extension
//     payloads (citations, trajectory steps, error detail, form requests,
//     canvas edits, agent detail) from part or message metadata bags.
//   - [Client]: JSON-RPC client with message/send, message/stream, and
//     tasks/cancel.
//
// # Stream Consumption
//
// Use [Client.StreamMessage] to open a streaming turn and drain events until
// io.EOF:
//
//	stream, err := client.StreamMessage(ctx, a2a.SendMessageRequest{Message: msg})
//	if err != nil { ... }
//	defer stream.Close()
//	for {
//		ev, err := stream.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
//
// Malformed frames never abort the stream; only transport failures do.
package a2a
