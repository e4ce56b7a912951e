package ui

import "context"

// Sink is the minimal ingestion surface every rendering library exposes: a
// single complete message. Implementations may be slow or fail; callers log
// failures and degrade rather than crash.
type Sink interface {
	AddMessage(ctx context.Context, msg Message) error
}

// ChunkSink is the incremental ingestion surface. Sinks that implement it
// receive streaming partial/complete/final chunks instead of one-shot
// messages.
type ChunkSink interface {
	Sink
	AddChunk(ctx context.Context, chunk Chunk) error
}

// SupportsChunking probes a sink for incremental ingestion capability.
// Callers probe once per response and cache the result; they never re-probe
// concurrently.
func SupportsChunking(s Sink) (ChunkSink, bool) {
	cs, ok := s.(ChunkSink)
	return cs, ok
}

// ChunkKind discriminates the three ingestion call shapes.
type ChunkKind string

const (
	// ChunkPartial is an incremental update to one streaming item.
	ChunkPartial ChunkKind = "partial"
	// ChunkComplete closes one streaming item.
	ChunkComplete ChunkKind = "complete"
	// ChunkFinal is the terminal emission for a response.
	ChunkFinal ChunkKind = "final"
)

// Chunk is one ingestion command for a streaming response.
type Chunk struct {
	// ResponseID identifies the logical response this chunk belongs to.
	ResponseID string

	Kind ChunkKind

	// Item is the updated item for partial chunks.
	Item *Item

	// ItemID names the item being closed for complete chunks.
	ItemID string

	// StreamStopped marks a complete chunk whose item was cut off by user
	// cancellation.
	StreamStopped bool

	// Items is the full item array for final chunks.
	Items []Item

	// Options carries message-level display state. On partial chunks it
	// holds whatever changed; on final chunks it holds the complete state.
	Options *MessageOptions
}

// ItemType identifies what an item renders as.
type ItemType string

const (
	ItemText      ItemType = "text"
	ItemFile      ItemType = "file"
	ItemData      ItemType = "data"
	ItemCitations ItemType = "citations"
)

// Item is one renderable unit within a response.
type Item struct {
	ID   string
	Type ItemType

	// Text holds item content for text items. When Delta is true it is an
	// incremental suffix; otherwise it is the full content.
	Text  string
	Delta bool

	File      *FileAttachment
	Data      any
	Citations []Citation
}

// FileAttachment is a one-shot file item.
type FileAttachment struct {
	Name     string
	MimeType string
	URI      string
	Bytes    string // Base64 encoded, set when no URI is available
}

// MessageOptions is message-level display state pushed alongside items.
type MessageOptions struct {
	// Thinking is the accumulated reasoning content, rendered as a single
	// growing collapsible block. Each push replaces the previous content.
	Thinking string

	// Steps is the ordered trajectory step list. Each push carries the full
	// list, not a delta.
	Steps []ReasoningStep

	// ChainOfThought is the ordered tool-invocation ledger.
	ChainOfThought []ToolStep

	Citations []Citation

	// Error marks the message as an inline error variant.
	Error bool
}

// ReasoningStep is one discrete trajectory step shown in the reasoning
// panel.
type ReasoningStep struct {
	Title   string
	Content string
}

// StepStatus is the lifecycle state of a chain-of-thought entry.
type StepStatus string

const (
	StepInProgress StepStatus = "in_progress"
	StepSuccess    StepStatus = "success"
	StepError      StepStatus = "error"
)

// ToolStep is one tool invocation in the chain-of-thought list.
type ToolStep struct {
	Title    string
	Status   StepStatus
	Request  string
	Response string
}

// Citation references a source document.
type Citation struct {
	URL     string
	Title   string
	Snippet string
}

// Message is a single-shot complete message for sinks without chunking
// support, or for responses that never started streaming.
type Message struct {
	ResponseID string
	Items      []Item
	Options    *MessageOptions
}

// Text returns the concatenated text of all text items.
func (m Message) Text() string {
	var out string
	for _, it := range m.Items {
		if it.Type == ItemText {
			out += it.Text
		}
	}
	return out
}

// DedupeCitations returns citations deduplicated by URL, preserving arrival
// order. Storage keeps duplicates; display does not.
func DedupeCitations(in []Citation) []Citation {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Citation, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}
