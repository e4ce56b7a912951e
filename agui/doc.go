// Package agui renders response streams as AG-UI protocol events.
//
// AG-UI (Agent-User Interface) is an open, lightweight, event-based protocol
// that standardizes how AI agents connect to user-facing applications. The
// [Sink] in this package is a chunk-capable rendering sink: plug it into a
// bridge.Conversation and the streamed response comes out the other side as
// an ordered AG-UI event sequence (RUN_STARTED, TEXT_MESSAGE_* deltas,
// TOOL_CALL_* lifecycle, STEP_* markers, RUN_FINISHED).
//
//	sink := agui.NewSink(agui.NewSSEWriter(w))
//	conv := bridge.NewConversation(client, sink)
//	conv.SendText(ctx, prompt)
//
// Message conversion helpers translate between AG-UI message history, as
// frontends submit it, and the agent protocol's message shape.
//
// A Sink handles one run. It is safe for concurrent use, though the bridge
// already serializes calls per response.
package agui
