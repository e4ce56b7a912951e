package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/ui"
)

// FinalizeOptions selects the terminal path for a session.
type FinalizeOptions struct {
	// Cancelled marks the turn as stopped by the user.
	Cancelled bool

	// Err is the unrecoverable transport error that ended the turn, if any.
	// Accumulated partial output is still emitted.
	Err error
}

// Finalize performs the exactly-once terminal emission for the current
// session. Any of the trigger conditions (final envelope, end of input,
// cancellation, transport error) may call it; only the first call acts, and
// subsequent calls are logged no-ops regardless of which trigger fired
// first.
func (t *Translator) Finalize(ctx context.Context, opts FinalizeOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s == nil {
		return
	}
	if t.s.finalResponseSent {
		t.log.Debug("duplicate finalize ignored",
			zap.String("response_id", t.s.responseID),
			zap.Bool("cancelled", opts.Cancelled),
		)
		return
	}
	t.s.finalResponseSent = true
	t.s.phase = phaseFinalizing
	defer func() { t.s.phase = phaseDone }()

	if opts.Err != nil {
		t.s.errored = true
		t.recordTransportErrorLocked(opts.Err)
	}

	if t.chunkSink != nil && t.s.hasStartedStreaming {
		t.finalizeStreamingLocked(ctx, opts)
	} else {
		t.finalizeSingleShotLocked(ctx, opts)
	}

	t.log.Info("session finalized",
		zap.String("response_id", t.s.responseID),
		zap.Bool("cancelled", opts.Cancelled),
		zap.Bool("errored", t.s.errored),
		zap.Int("text_len", t.s.text.Len()),
		zap.Int("chain_len", len(t.s.chain)),
	)
}

// recordTransportErrorLocked folds an unrecoverable transport error into the
// visible text. Partial output already accumulated is preserved, never
// dropped.
func (t *Translator) recordTransportErrorLocked(err error) {
	note := "Connection error: " + err.Error()
	if t.s.text.Len() > 0 {
		note = "\n\n" + note
	}
	t.s.text.WriteString(note)
	// Not queued through the flusher: the terminal emission below carries
	// the full accumulated text.
}

// finalizeStreamingLocked is the chunked terminal path: flush pending
// updates, close the primary item, then emit the final response chunk.
func (t *Translator) finalizeStreamingLocked(ctx context.Context, opts FinalizeOptions) {
	t.flushPendingLocked(ctx)

	t.addChunkLocked(ctx, ui.Chunk{
		ResponseID:    t.s.responseID,
		Kind:          ui.ChunkComplete,
		ItemID:        t.s.itemID,
		StreamStopped: opts.Cancelled,
	})

	final := ui.Chunk{
		ResponseID: t.s.responseID,
		Kind:       ui.ChunkFinal,
		Items:      t.finalItemsLocked(opts),
		Options:    t.finalOptionsLocked(),
	}
	if !t.addChunkLocked(ctx, final) {
		// Chunk ingestion broke mid-finalization: degrade to the one-shot
		// path so the user is never left with a loading indicator.
		t.addMessageLocked(ctx, ui.Message{
			ResponseID: t.s.responseID,
			Items:      final.Items,
			Options:    final.Options,
		})
	}
}

// finalizeSingleShotLocked emits one complete message, used when the sink
// lacks chunking or nothing ever streamed.
func (t *Translator) finalizeSingleShotLocked(ctx context.Context, opts FinalizeOptions) {
	t.addMessageLocked(ctx, ui.Message{
		ResponseID: t.s.responseID,
		Items:      t.finalItemsLocked(opts),
		Options:    t.finalOptionsLocked(),
	})

	// On sinks without chunking the item array omits citations; they get
	// their own trailing message instead.
	if len(t.s.citations) > 0 && !t.s.supportsChunking {
		t.s.citationsShown = true
		t.addMessageLocked(ctx, ui.Message{
			ResponseID: t.s.responseID,
			Items: []ui.Item{{
				ID:        citationsItemID,
				Type:      ui.ItemCitations,
				Citations: ui.DedupeCitations(t.s.citations),
			}},
		})
	}
}

// finalItemsLocked assembles the full item array for the terminal emission.
func (t *Translator) finalItemsLocked(opts FinalizeOptions) []ui.Item {
	text := t.s.text.String()
	if text == "" && opts.Cancelled {
		text = cancelledPlaceholder
	}

	items := make([]ui.Item, 0, len(t.s.extraItems)+2)
	items = append(items, ui.Item{
		ID:   t.s.itemID,
		Type: ui.ItemText,
		Text: text,
	})
	items = append(items, t.s.extraItems...)
	if len(t.s.citations) > 0 && t.s.supportsChunking {
		items = append(items, ui.Item{
			ID:        citationsItemID,
			Type:      ui.ItemCitations,
			Citations: ui.DedupeCitations(t.s.citations),
		})
	}
	return items
}

func (t *Translator) finalOptionsLocked() *ui.MessageOptions {
	opts := &ui.MessageOptions{
		Thinking:  t.s.thinking.String(),
		Error:     t.s.errored,
		Citations: ui.DedupeCitations(t.s.citations),
	}
	if len(t.s.steps) > 0 {
		opts.Steps = append([]ui.ReasoningStep(nil), t.s.steps...)
	}
	if len(t.s.chain) > 0 {
		opts.ChainOfThought = append([]ui.ToolStep(nil), t.s.chain...)
	}
	return opts
}

func (t *Translator) addMessageLocked(ctx context.Context, msg ui.Message) {
	if err := t.sink.AddMessage(ctx, msg); err != nil {
		t.log.Error("message ingestion failed",
			zap.String("response_id", msg.ResponseID),
			zap.Error(&agentwire.SinkError{Call: "add-message", Cause: err}),
		)
	}
}
