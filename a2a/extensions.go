package a2a

import "encoding/json"

// Well-known extension URIs. Agents attach typed payloads to message or
// artifact metadata under these keys; anything else in the bag is ignored.
const (
	ExtensionCitations   = "https://a2a-extensions.dev/citations/v1"
	ExtensionTrajectory  = "https://a2a-extensions.dev/trajectory/v1"
	ExtensionErrorDetail = "https://a2a-extensions.dev/error-detail/v1"
	ExtensionFormRequest = "https://a2a-extensions.dev/form-request/v1"
	ExtensionCanvasEdit  = "https://a2a-extensions.dev/canvas-edit/v1"
	ExtensionAgentDetail = "https://a2a-extensions.dev/agent-detail/v1"
)

// Content-type hints carried in part metadata. A text part tagged with one of
// these holds reasoning content rather than answer text.
const (
	ContentTypeThinking      = "thinking"
	ContentTypeReasoningStep = "reasoning_step"
)

// metadataContentTypeKey is the metadata key carrying the content-type hint.
const metadataContentTypeKey = "content_type"

// Citation references a source document backing part of the response.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// TrajectoryStep is one discrete reasoning/progress step emitted by the
// agent.
type TrajectoryStep struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// ErrorDetail is a structured agent-side error description.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// FormRequest asks the user to fill in a structured form.
type FormRequest struct {
	Title  string      `json:"title,omitempty"`
	Fields []FormField `json:"fields"`
}

// FormField is one input in a requested form.
type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// CanvasEdit describes an agent-driven edit to a shared canvas document.
type CanvasEdit struct {
	Target    string `json:"target"`
	Operation string `json:"operation,omitempty"`
	Content   string `json:"content,omitempty"`
}

// AgentDetail carries self-describing agent information surfaced mid-turn.
type AgentDetail struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Extensions is the extracted extension set of one metadata bag: zero or one
// of each known payload, plus the content-type hint. Absent keys yield zero
// fields.
type Extensions struct {
	ContentType string
	Citations   []Citation
	Trajectory  *TrajectoryStep
	ErrorDetail *ErrorDetail
	FormRequest *FormRequest
	CanvasEdit  *CanvasEdit
	AgentDetail *AgentDetail
}

// ExtractExtensions extracts typed extension payloads from a metadata bag.
// It is pure and total: nil or empty bags and payloads that fail to decode
// all yield absent fields, never an error or panic. Unrecognized keys are
// ignored.
func ExtractExtensions(metadata map[string]any) Extensions {
	var ext Extensions
	if metadata == nil {
		return ext
	}

	if ct, ok := metadata[metadataContentTypeKey].(string); ok {
		ext.ContentType = ct
	}
	if v, ok := metadata[ExtensionCitations]; ok {
		decodeInto(v, &ext.Citations)
	}
	if v, ok := metadata[ExtensionTrajectory]; ok {
		ext.Trajectory = decodePtr[TrajectoryStep](v)
	}
	if v, ok := metadata[ExtensionErrorDetail]; ok {
		ext.ErrorDetail = decodePtr[ErrorDetail](v)
	}
	if v, ok := metadata[ExtensionFormRequest]; ok {
		ext.FormRequest = decodePtr[FormRequest](v)
	}
	if v, ok := metadata[ExtensionCanvasEdit]; ok {
		ext.CanvasEdit = decodePtr[CanvasEdit](v)
	}
	if v, ok := metadata[ExtensionAgentDetail]; ok {
		ext.AgentDetail = decodePtr[AgentDetail](v)
	}
	return ext
}

// IsThinking reports whether the content-type hint marks reasoning content.
func (e Extensions) IsThinking() bool {
	return e.ContentType == ContentTypeThinking || e.ContentType == ContentTypeReasoningStep
}

// decodeInto re-marshals an untyped payload into dst. Decode failures leave
// dst untouched; extraction is total.
func decodeInto(v any, dst any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func decodePtr[T any](v any) *T {
	var out T
	if !decodeInto(v, &out) {
		return nil
	}
	return &out
}

// ToolCall is a tool invocation announced by the agent through a data part
// tagged "tool_call".
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool invocation, carried in a data part
// tagged "tool_result". Correlation with the originating call is by Name;
// the protocol carries no call ID on results.
type ToolResult struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// DecodedData is the closed-set classification of one data part payload.
// Exactly one field is set: a tool call, a tool result, or the raw payload
// for everything else. Classification happens once at the boundary; the
// state machine matches on it without re-inspecting the bag.
type DecodedData struct {
	ToolCall   *ToolCall
	ToolResult *ToolResult
	Other      map[string]any
}

// DecodeData classifies a data part payload by its type tag. Payloads whose
// tagged substructure fails to decode fall back to Other rather than being
// dropped.
func DecodeData(p DataPart) DecodedData {
	data := p.Data
	if data == nil {
		return DecodedData{Other: map[string]any{}}
	}

	switch data["type"] {
	case "tool_call":
		if tc := decodeToolCall(data); tc != nil {
			return DecodedData{ToolCall: tc}
		}
	case "tool_result":
		if tr := decodeToolResult(data); tr != nil {
			return DecodedData{ToolResult: tr}
		}
	}
	return DecodedData{Other: data}
}

// decodeToolCall reads a tool call from either the nested "tool_call" object
// or flat top-level fields; both shapes occur in the wild.
func decodeToolCall(data map[string]any) *ToolCall {
	src := data
	if nested, ok := data["tool_call"].(map[string]any); ok {
		src = nested
	}

	name, _ := src["name"].(string)
	if name == "" {
		return nil
	}
	id, _ := src["id"].(string)
	args, _ := src["arguments"].(string)
	return &ToolCall{ID: id, Name: name, Arguments: args}
}

func decodeToolResult(data map[string]any) *ToolResult {
	src := data
	if nested, ok := data["tool_result"].(map[string]any); ok {
		src = nested
	}

	name, _ := src["name"].(string)
	if name == "" {
		// Older agents key results by tool_name.
		name, _ = src["tool_name"].(string)
	}
	if name == "" {
		return nil
	}

	content, _ := src["content"].(string)
	if content == "" {
		content, _ = src["result_preview"].(string)
	}
	id, _ := src["tool_call_id"].(string)
	isError, _ := src["is_error"].(bool)
	return &ToolResult{ID: id, Name: name, Content: content, IsError: isError}
}
