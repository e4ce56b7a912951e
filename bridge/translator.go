package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/a2a"
	"github.com/agentwire/agentwire/ui"
)

const (
	// textFlushInterval batches high-frequency text deltas into one partial
	// chunk per tick.
	textFlushInterval = 50 * time.Millisecond

	// reasoningPushInterval is the minimum spacing between trajectory-step
	// pushes. Each push carries the full step list, so skipped pushes lose
	// nothing.
	reasoningPushInterval = 200 * time.Millisecond

	// citationsItemID keys the citations side item, kept distinct from the
	// primary text item so citation updates never touch the body text.
	citationsItemID = "citations"

	// cancelledPlaceholder is the terminal text when a turn is cancelled
	// before anything accumulated.
	cancelledPlaceholder = "(Request cancelled)"
)

// phase is the lifecycle state of one session.
type phase int

const (
	phaseIdle phase = iota
	phaseStreaming
	phaseFinalizing
	phaseDone
)

// session is the per-turn mutable state. It is owned exclusively by one
// Translator handling one user turn and is discarded, never reused, when the
// turn ends.
type session struct {
	responseID string
	itemID     string

	// taskID is the server-side task identifier, captured from the first
	// event that carries one. Used for best-effort upstream cancellation.
	taskID string

	text     strings.Builder
	thinking strings.Builder
	steps    []ui.ReasoningStep
	chain    []ui.ToolStep

	// citations is append-only in arrival order; display dedupes by URL.
	citations      []ui.Citation
	citationsShown bool

	// extraItems collects one-shot file/data items for the final item array.
	extraItems []ui.Item

	hasStartedStreaming bool
	finalResponseSent   bool
	errored             bool
	phase               phase

	// supportsChunking caches the sink capability probe for the session's
	// lifetime.
	supportsChunking bool
}

// Translator is the streaming translation state machine: it consumes ordered
// protocol events for one turn and emits an ordered sequence of UI chunk
// commands through the sink.
//
// All methods are safe for concurrent use; internally a single mutex
// serializes event handling, timer callbacks, and finalization so sink calls
// for one response never overlap.
type Translator struct {
	mu        sync.Mutex
	sink      ui.Sink
	chunkSink ui.ChunkSink // nil when the sink lacks incremental ingestion
	clock     Clock
	log       *zap.Logger

	s *session

	// Text batching state.
	textQueue []string
	textTimer Timer

	// Reasoning-step rate limiting state.
	reasonTimer    Timer
	lastReasonPush time.Time
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithClock sets the clock used for debounce timers. Defaults to the system
// clock.
func WithClock(c Clock) TranslatorOption {
	return func(t *Translator) { t.clock = c }
}

// WithLogger sets the translator logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) TranslatorOption {
	return func(t *Translator) { t.log = log }
}

// NewTranslator creates a Translator emitting into sink. The sink's chunking
// capability is probed once here and cached.
func NewTranslator(sink ui.Sink, opts ...TranslatorOption) *Translator {
	t := &Translator{
		sink:  sink,
		clock: SystemClock(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.chunkSink, _ = ui.SupportsChunking(sink)
	return t
}

// Begin starts a new session. Any previous session is discarded; callers are
// expected to have finalized it first.
func (t *Translator) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimersLocked()
	t.textQueue = nil
	t.lastReasonPush = time.Time{}
	t.s = &session{
		responseID:       uuid.New().String(),
		itemID:           uuid.New().String(),
		phase:            phaseIdle,
		supportsChunking: t.chunkSink != nil,
	}
	t.log.Debug("session started",
		zap.String("response_id", t.s.responseID),
		zap.Bool("supports_chunking", t.s.supportsChunking),
	)
}

// ResponseID returns the current session's response ID, or "" if no session
// is active.
func (t *Translator) ResponseID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.s == nil {
		return ""
	}
	return t.s.responseID
}

// TaskID returns the upstream task ID captured for the current session, or
// "" if none was observed.
func (t *Translator) TaskID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.s == nil {
		return ""
	}
	return t.s.taskID
}

// HandleEvent feeds one protocol event through the state machine. It reports
// whether the event carried a terminal signal; the caller then finalizes.
// Calling HandleEvent after finalization is a no-op.
func (t *Translator) HandleEvent(ctx context.Context, ev a2a.Event) (final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s == nil || t.s.finalResponseSent {
		return false
	}

	switch e := ev.(type) {
	case a2a.StatusUpdate:
		t.captureTaskIDLocked(e.TaskID)
		if e.Status.Message != nil {
			t.handleMessageLocked(ctx, *e.Status.Message)
		}
		return e.Final || e.Status.State == a2a.TaskStateCompleted

	case a2a.ArtifactUpdate:
		t.captureTaskIDLocked(e.TaskID)
		t.handleExtensionsLocked(ctx, a2a.ExtractExtensions(e.Artifact.Metadata))
		for _, part := range e.Artifact.Parts {
			t.handlePartLocked(ctx, part)
		}
		return false

	case a2a.TaskSnapshot:
		t.captureTaskIDLocked(e.ID)
		if e.Status.Message != nil {
			t.handleMessageLocked(ctx, *e.Status.Message)
		}
		return e.Status.State.IsTerminal()

	case a2a.MessageEvent:
		t.handleMessageLocked(ctx, e.Message)
		return false

	default:
		return false
	}
}

// HandleProtocolError records an agent-reported error as visible error text.
// The stream is not aborted; the final emission is marked as an error.
func (t *Translator) HandleProtocolError(ctx context.Context, perr *agentwire.ProtocolError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s == nil || t.s.finalResponseSent {
		return
	}
	t.s.errored = true
	t.appendTextLocked(ctx, "Agent error: "+perr.Message)
}

// AppendDiagnostic appends a synthesized diagnostic fragment (for example a
// recognized backend exception dump) to the visible response text.
func (t *Translator) AppendDiagnostic(ctx context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s == nil || t.s.finalResponseSent || text == "" {
		return
	}
	if t.s.text.Len() > 0 {
		text = "\n\n" + text
	}
	t.appendTextLocked(ctx, text)
}

func (t *Translator) captureTaskIDLocked(taskID string) {
	if taskID != "" && t.s.taskID == "" {
		t.s.taskID = taskID
	}
}

// handleExtensionsLocked applies envelope-level metadata extensions. Parts
// carry their own metadata and are routed separately.
func (t *Translator) handleExtensionsLocked(ctx context.Context, ext a2a.Extensions) {
	if len(ext.Citations) > 0 {
		t.handleCitationsLocked(ctx, ext.Citations)
	}
	if ext.ErrorDetail != nil {
		t.s.errored = true
		t.appendTextLocked(ctx, errorDetailText(ext.ErrorDetail))
	}
}

func (t *Translator) handleMessageLocked(ctx context.Context, msg a2a.Message) {
	t.captureTaskIDLocked(msg.TaskID)
	t.handleExtensionsLocked(ctx, a2a.ExtractExtensions(msg.Metadata))
	for _, part := range msg.Parts {
		t.handlePartLocked(ctx, part)
	}
}

// handlePartLocked routes one part. The priority order is a hard contract: a
// part may satisfy several superficial shapes and only the first matching
// rule applies.
func (t *Translator) handlePartLocked(ctx context.Context, part a2a.Part) {
	ext := a2a.ExtractExtensions(part.GetMetadata())

	// Citations ride the side channel of any part kind: record them now and
	// push the side item after the part itself is routed, so a citation
	// arriving with the first text delta still streams.
	if len(ext.Citations) > 0 {
		for _, c := range ext.Citations {
			t.s.citations = append(t.s.citations, ui.Citation{URL: c.URL, Title: c.Title, Snippet: c.Snippet})
		}
		defer func() {
			if t.s.hasStartedStreaming {
				t.pushCitationsLocked(ctx)
			}
		}()
	}

	// Rule 1: trajectory step, debounced push.
	if ext.Trajectory != nil {
		t.s.steps = append(t.s.steps, ui.ReasoningStep{
			Title:   ext.Trajectory.Title,
			Content: ext.Trajectory.Content,
		})
		t.scheduleReasoningPushLocked(ctx)
		return
	}

	// Rule 2: thinking text, pushed immediately as one growing block.
	if tp, ok := part.(a2a.TextPart); ok && ext.IsThinking() {
		t.s.thinking.WriteString(tp.Text)
		t.pushThinkingLocked(ctx)
		return
	}

	// Structured extension payloads surface as one-shot data items.
	if ext.ErrorDetail != nil {
		t.s.errored = true
		t.appendTextLocked(ctx, errorDetailText(ext.ErrorDetail))
		return
	}
	if ext.FormRequest != nil {
		t.emitDataItemLocked(ctx, map[string]any{"type": "form", "form": ext.FormRequest})
		return
	}
	if ext.CanvasEdit != nil {
		t.emitDataItemLocked(ctx, map[string]any{"type": "canvas_edit", "canvas_edit": ext.CanvasEdit})
		return
	}
	if ext.AgentDetail != nil {
		t.emitDataItemLocked(ctx, map[string]any{"type": "agent_detail", "agent_detail": ext.AgentDetail})
		return
	}

	switch p := part.(type) {
	case a2a.TextPart:
		// Rule 5: plain answer text, batched through the flusher.
		t.appendTextLocked(ctx, p.Text)

	case a2a.FilePart:
		// Rule 6: one-shot file attachment item.
		t.emitItemLocked(ctx, ui.Item{
			ID:   newItemID(),
			Type: ui.ItemFile,
			File: &ui.FileAttachment{
				Name:     p.File.Name,
				MimeType: p.File.MimeType,
				URI:      p.File.URI,
				Bytes:    p.File.Bytes,
			},
		})

	case a2a.DataPart:
		d := a2a.DecodeData(p)
		switch {
		case d.ToolCall != nil:
			// Rule 3: open a chain-of-thought entry.
			t.s.chain = append(t.s.chain, ui.ToolStep{
				Title:   d.ToolCall.Name,
				Status:  ui.StepInProgress,
				Request: d.ToolCall.Arguments,
			})
			t.pushChainLocked(ctx)

		case d.ToolResult != nil:
			// Rule 4: resolve the most recent in-progress entry by name.
			t.resolveToolLocked(ctx, d.ToolResult)

		default:
			// Rule 7: other structured data, one-shot item.
			t.emitDataItemLocked(ctx, d.Other)
		}
	}
}

// resolveToolLocked transitions a chain-of-thought entry in place. Matching
// is by tool name only; the protocol carries no call ID on results, so
// interleaved same-name calls resolve most-recent-first (known limitation).
func (t *Translator) resolveToolLocked(ctx context.Context, tr *a2a.ToolResult) {
	status := ui.StepSuccess
	if tr.IsError {
		status = ui.StepError
	}

	for i := len(t.s.chain) - 1; i >= 0; i-- {
		if t.s.chain[i].Title == tr.Name && t.s.chain[i].Status == ui.StepInProgress {
			t.s.chain[i].Status = status
			t.s.chain[i].Response = tr.Content
			t.pushChainLocked(ctx)
			return
		}
	}

	// Result without a matching call: append an already-resolved entry.
	t.s.chain = append(t.s.chain, ui.ToolStep{
		Title:    tr.Name,
		Status:   status,
		Response: tr.Content,
	})
	t.pushChainLocked(ctx)
}

func (t *Translator) handleCitationsLocked(ctx context.Context, cs []a2a.Citation) {
	for _, c := range cs {
		t.s.citations = append(t.s.citations, ui.Citation{URL: c.URL, Title: c.Title, Snippet: c.Snippet})
	}
	if t.s.hasStartedStreaming {
		t.pushCitationsLocked(ctx)
	}
}

// appendTextLocked handles a plain text delta: accumulate, mark streaming
// started, enqueue for the debounced flusher.
func (t *Translator) appendTextLocked(ctx context.Context, text string) {
	if text == "" {
		return
	}
	t.s.text.WriteString(text)
	if !t.s.hasStartedStreaming {
		t.s.hasStartedStreaming = true
		t.s.phase = phaseStreaming
	}
	t.enqueueTextLocked(ctx, text)
}

func newItemID() string { return uuid.New().String() }

func errorDetailText(ed *a2a.ErrorDetail) string {
	msg := ed.Message
	if msg == "" {
		msg = ed.Detail
	}
	if ed.Code != "" {
		return "Agent error (" + ed.Code + "): " + msg
	}
	return "Agent error: " + msg
}
