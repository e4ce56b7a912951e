package agui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"

	"github.com/agentwire/agentwire/ui"
)

// EventWriter delivers one AG-UI event to the frontend.
type EventWriter interface {
	WriteEvent(ev events.Event) error
}

// WriterFunc adapts a function to the EventWriter interface.
type WriterFunc func(ev events.Event) error

// WriteEvent calls f(ev).
func (f WriterFunc) WriteEvent(ev events.Event) error { return f(ev) }

// SSEWriter writes AG-UI events as server-sent events, flushing after each
// one when the destination supports it.
type SSEWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSSEWriter creates an SSEWriter over w.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// WriteEvent encodes ev as one SSE data frame.
func (s *SSEWriter) WriteEvent(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if fl, ok := s.w.(http.Flusher); ok {
		fl.Flush()
	}
	return nil
}

// Sink renders one response stream as AG-UI events. It implements
// ui.ChunkSink, so the bridge streams through it incrementally: text deltas
// become TEXT_MESSAGE_CONTENT events, trajectory steps become STEP_* markers
// and tool activity becomes the TOOL_CALL_* lifecycle.
//
// A Sink covers one run. RUN_STARTED is emitted lazily with the first
// ingestion call; the final chunk closes everything still open and emits
// RUN_FINISHED (or RUN_ERROR for error-marked responses).
type Sink struct {
	mu  sync.Mutex
	out EventWriter

	threadID string
	runID    string

	started   bool
	finished  bool
	messageID string // open text message, "" when none
	openStep  string
	stepsSeen int
	tools     []toolState
}

// toolState tracks which lifecycle events were already emitted for one
// chain-of-thought entry, keyed by position.
type toolState struct {
	id       string
	resolved bool
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithThreadID sets the thread ID used in run lifecycle events.
func WithThreadID(id string) SinkOption {
	return func(s *Sink) { s.threadID = id }
}

// WithRunID sets the run ID used in run lifecycle events.
func WithRunID(id string) SinkOption {
	return func(s *Sink) { s.runID = id }
}

// NewSink creates a Sink writing AG-UI events through out. Thread and run
// IDs are generated unless provided.
func NewSink(out EventWriter, opts ...SinkOption) *Sink {
	s := &Sink{out: out}
	for _, opt := range opts {
		opt(s)
	}
	if s.threadID == "" {
		s.threadID = events.GenerateThreadID()
	}
	if s.runID == "" {
		s.runID = events.GenerateRunID()
	}
	return s
}

// ThreadID returns the thread ID for this run.
func (s *Sink) ThreadID() string { return s.threadID }

// RunID returns the run ID for this run.
func (s *Sink) RunID() string { return s.runID }

// AddChunk ingests one streaming chunk.
func (s *Sink) AddChunk(_ context.Context, chunk ui.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil
	}
	if err := s.ensureRunLocked(); err != nil {
		return err
	}

	switch chunk.Kind {
	case ui.ChunkPartial:
		return s.partialLocked(chunk)

	case ui.ChunkComplete:
		if s.messageID != "" && chunk.ItemID == s.messageID {
			return s.closeMessageLocked()
		}
		return nil

	case ui.ChunkFinal:
		return s.finishLocked(chunk.Options != nil && chunk.Options.Error)

	default:
		return nil
	}
}

// AddMessage ingests one complete message. Used when nothing streamed, for
// example a cancelled turn that never produced content.
func (s *Sink) AddMessage(_ context.Context, msg ui.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil
	}
	if err := s.ensureRunLocked(); err != nil {
		return err
	}

	if opts := msg.Options; opts != nil {
		if err := s.syncStepsLocked(opts.Steps); err != nil {
			return err
		}
		if err := s.syncToolsLocked(opts.ChainOfThought); err != nil {
			return err
		}
	}

	if text := msg.Text(); text != "" {
		if err := s.openMessageLocked(firstTextItemID(msg.Items)); err != nil {
			return err
		}
		if err := s.out.WriteEvent(events.NewTextMessageContentEvent(s.messageID, text)); err != nil {
			return err
		}
	}

	return s.finishLocked(msg.Options != nil && msg.Options.Error)
}

func (s *Sink) partialLocked(chunk ui.Chunk) error {
	if opts := chunk.Options; opts != nil {
		if err := s.syncStepsLocked(opts.Steps); err != nil {
			return err
		}
		if err := s.syncToolsLocked(opts.ChainOfThought); err != nil {
			return err
		}
	}

	item := chunk.Item
	if item == nil || item.Type != ui.ItemText || item.Text == "" {
		// File, data and citation items have no AG-UI event shape; they
		// surface through the final item array of the hosting application.
		return nil
	}

	if err := s.openMessageLocked(item.ID); err != nil {
		return err
	}
	return s.out.WriteEvent(events.NewTextMessageContentEvent(s.messageID, item.Text))
}

func (s *Sink) ensureRunLocked() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.out.WriteEvent(events.NewRunStartedEvent(s.threadID, s.runID))
}

func (s *Sink) openMessageLocked(id string) error {
	if s.messageID != "" {
		return nil
	}
	if id == "" {
		id = events.GenerateMessageID()
	}
	s.messageID = id
	return s.out.WriteEvent(events.NewTextMessageStartEvent(id, events.WithRole(RoleAssistant)))
}

func (s *Sink) closeMessageLocked() error {
	if s.messageID == "" {
		return nil
	}
	id := s.messageID
	s.messageID = ""
	return s.out.WriteEvent(events.NewTextMessageEndEvent(id))
}

// syncStepsLocked emits STEP_STARTED for steps not yet announced, finishing
// the previously open one first. Pushes carry the full list, so new entries
// are everything past the high-water mark.
func (s *Sink) syncStepsLocked(steps []ui.ReasoningStep) error {
	for ; s.stepsSeen < len(steps); s.stepsSeen++ {
		if err := s.closeStepLocked(); err != nil {
			return err
		}
		name := steps[s.stepsSeen].Title
		s.openStep = name
		if err := s.out.WriteEvent(events.NewStepStartedEvent(name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) closeStepLocked() error {
	if s.openStep == "" {
		return nil
	}
	name := s.openStep
	s.openStep = ""
	return s.out.WriteEvent(events.NewStepFinishedEvent(name))
}

// syncToolsLocked walks the chain-of-thought ledger, emitting start events
// for new entries and end/result events for entries that resolved since the
// last push. Entries correlate by position; the ledger is append-only.
func (s *Sink) syncToolsLocked(chain []ui.ToolStep) error {
	for i := len(s.tools); i < len(chain); i++ {
		ts := toolState{id: uuid.New().String()}
		s.tools = append(s.tools, ts)
		if err := s.out.WriteEvent(events.NewToolCallStartEvent(ts.id, chain[i].Title)); err != nil {
			return err
		}
		if args := chain[i].Request; args != "" {
			if err := s.out.WriteEvent(events.NewToolCallArgsEvent(ts.id, args)); err != nil {
				return err
			}
		}
	}

	for i := range chain {
		if chain[i].Status == ui.StepInProgress || s.tools[i].resolved {
			continue
		}
		s.tools[i].resolved = true
		if err := s.out.WriteEvent(events.NewToolCallEndEvent(s.tools[i].id)); err != nil {
			return err
		}
		if chain[i].Response != "" {
			ev := events.NewToolCallResultEvent(events.GenerateMessageID(), s.tools[i].id, chain[i].Response)
			if err := s.out.WriteEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sink) finishLocked(errored bool) error {
	s.finished = true
	if err := s.closeMessageLocked(); err != nil {
		return err
	}
	if err := s.closeStepLocked(); err != nil {
		return err
	}
	if errored {
		return s.out.WriteEvent(events.NewRunErrorEvent("agent run failed"))
	}
	return s.out.WriteEvent(events.NewRunFinishedEvent(s.threadID, s.runID))
}

func firstTextItemID(items []ui.Item) string {
	for _, it := range items {
		if it.Type == ui.ItemText {
			return it.ID
		}
	}
	return ""
}
