package bridge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/ui"
)

// This file is the chunk emitter: the two batching policies that sit between
// the state machine and the sink. Text deltas are queued and flushed once
// per interval; trajectory-step pushes are rate limited to a minimum
// spacing. Both policies guarantee the last pending update survives
// finalization, which always flushes synchronously first.

// enqueueTextLocked queues a text delta and arms the flush timer if none is
// pending. With a non-chunking sink the accumulator alone carries the state,
// so there is nothing to schedule.
func (t *Translator) enqueueTextLocked(ctx context.Context, delta string) {
	if t.chunkSink == nil {
		return
	}
	t.textQueue = append(t.textQueue, delta)
	if t.textTimer != nil {
		return
	}
	s := t.s
	t.textTimer = t.clock.AfterFunc(textFlushInterval, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A finalize or new session may have won the race with this timer.
		if t.s != s || s.finalResponseSent {
			return
		}
		t.textTimer = nil
		t.flushTextLocked(ctx)
	})
}

// flushTextLocked concatenates and emits all queued text deltas as one
// partial chunk. Coalescing merges contiguous deltas; it never reorders.
func (t *Translator) flushTextLocked(ctx context.Context) {
	if t.textTimer != nil {
		t.textTimer.Stop()
		t.textTimer = nil
	}
	if len(t.textQueue) == 0 || t.chunkSink == nil {
		return
	}
	batch := strings.Join(t.textQueue, "")
	t.textQueue = t.textQueue[:0]

	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Item: &ui.Item{
			ID:    t.s.itemID,
			Type:  ui.ItemText,
			Text:  batch,
			Delta: true,
		},
	})
}

// scheduleReasoningPushLocked requests a trajectory-step push, waiting out
// the remainder of the minimum interval if the last push was too recent. The
// push always carries the full step list as of fire time, so coalesced
// requests lose nothing.
func (t *Translator) scheduleReasoningPushLocked(ctx context.Context) {
	if t.chunkSink == nil {
		return
	}
	if t.reasonTimer != nil {
		return // a pending push will pick up the latest list
	}

	elapsed := t.clock.Now().Sub(t.lastReasonPush)
	if t.lastReasonPush.IsZero() || elapsed >= reasoningPushInterval {
		t.pushReasoningLocked(ctx)
		return
	}

	s := t.s
	t.reasonTimer = t.clock.AfterFunc(reasoningPushInterval-elapsed, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.s != s || s.finalResponseSent {
			return
		}
		t.reasonTimer = nil
		t.pushReasoningLocked(ctx)
	})
}

func (t *Translator) pushReasoningLocked(ctx context.Context) {
	t.lastReasonPush = t.clock.Now()
	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Options:    &ui.MessageOptions{Steps: append([]ui.ReasoningStep(nil), t.s.steps...)},
	})
}

// pushThinkingLocked emits the full accumulated thinking content. This path
// is not debounced: each push replaces the displayed block, so skipping one
// would show stale content for up to an interval.
func (t *Translator) pushThinkingLocked(ctx context.Context) {
	if t.chunkSink == nil {
		return
	}
	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Options:    &ui.MessageOptions{Thinking: t.s.thinking.String()},
	})
}

func (t *Translator) pushChainLocked(ctx context.Context) {
	if t.chunkSink == nil {
		return
	}
	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Options:    &ui.MessageOptions{ChainOfThought: append([]ui.ToolStep(nil), t.s.chain...)},
	})
}

func (t *Translator) pushCitationsLocked(ctx context.Context) {
	if t.chunkSink == nil {
		return
	}
	t.s.citationsShown = true
	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Item: &ui.Item{
			ID:        citationsItemID,
			Type:      ui.ItemCitations,
			Citations: ui.DedupeCitations(t.s.citations),
		},
	})
}

// emitItemLocked records a one-shot item and, when chunking, pushes it
// immediately as its own partial chunk.
func (t *Translator) emitItemLocked(ctx context.Context, item ui.Item) {
	t.s.extraItems = append(t.s.extraItems, item)
	if t.chunkSink == nil {
		return
	}
	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkPartial,
		Item:       &item,
	})
}

func (t *Translator) emitDataItemLocked(ctx context.Context, data any) {
	t.emitItemLocked(ctx, ui.Item{
		ID:   newItemID(),
		Type: ui.ItemData,
		Data: data,
	})
}

// stopTimersLocked cancels pending timers without flushing. Used when a
// session is replaced wholesale.
func (t *Translator) stopTimersLocked() {
	if t.textTimer != nil {
		t.textTimer.Stop()
		t.textTimer = nil
	}
	if t.reasonTimer != nil {
		t.reasonTimer.Stop()
		t.reasonTimer = nil
	}
}

// flushPendingLocked performs the synchronous final flush: pending text goes
// out, and a pending reasoning push fires immediately regardless of the rate
// limit. No queued update may be dropped by finalization.
func (t *Translator) flushPendingLocked(ctx context.Context) {
	t.flushTextLocked(ctx)
	if t.reasonTimer != nil {
		t.reasonTimer.Stop()
		t.reasonTimer = nil
		t.pushReasoningLocked(ctx)
	}
}

// addChunkLocked issues one ingestion call. Failures are logged and reported
// to session state, never propagated; the session continues and finalization
// degrades if needed.
func (t *Translator) addChunkLocked(ctx context.Context, chunk ui.Chunk) bool {
	if err := t.chunkSink.AddChunk(ctx, chunk); err != nil {
		t.log.Warn("chunk ingestion failed",
			zap.String("response_id", chunk.ResponseID),
			zap.String("kind", string(chunk.Kind)),
			zap.Error(&agentwire.SinkError{Call: "add-chunk", Cause: err}),
		)
		return false
	}
	return true
}
