package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/agentwire/agentwire/a2a"
)

// Role constants matching AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToA2AMessages converts AG-UI message history, as frontends submit it, to
// agent protocol messages.
func ToA2AMessages(msgs []events.Message) []a2a.Message {
	result := make([]a2a.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToA2AMessage(msg))
	}
	return result
}

// ToA2AMessage converts a single AG-UI message. Tool-call and tool-result
// payloads become data parts so they round-trip through the protocol.
func ToA2AMessage(msg events.Message) a2a.Message {
	m := a2a.NewMessage(toA2ARole(msg.Role))
	if msg.ID != "" {
		m.MessageID = msg.ID
	}

	if msg.Content != nil && *msg.Content != "" {
		m.Parts = append(m.Parts, a2a.NewTextPart(*msg.Content))
	}

	for _, tc := range msg.ToolCalls {
		m.Parts = append(m.Parts, a2a.NewDataPart(map[string]any{
			"type":      "tool_call",
			"id":        tc.ID,
			"name":      tc.Function.Name,
			"arguments": tc.Function.Arguments,
		}))
	}

	if msg.ToolCallID != nil && msg.Content != nil {
		m.Parts = append(m.Parts, a2a.NewDataPart(map[string]any{
			"type":         "tool_result",
			"tool_call_id": *msg.ToolCallID,
			"content":      *msg.Content,
		}))
	}

	return m
}

// FromA2AMessage converts an agent protocol message to the AG-UI shape, for
// history snapshots sent back to frontends.
func FromA2AMessage(msg a2a.Message) events.Message {
	m := events.Message{
		ID:   msg.MessageID,
		Role: fromA2ARole(msg.Role),
	}
	if m.ID == "" {
		m.ID = events.GenerateMessageID()
	}
	if text := msg.TextContent(); text != "" {
		m.Content = &text
	}
	return m
}

// FromA2AMessages converts a message history to AG-UI form.
func FromA2AMessages(msgs []a2a.Message) []events.Message {
	result := make([]events.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, FromA2AMessage(msg))
	}
	return result
}

func toA2ARole(role string) a2a.MessageRole {
	if role == RoleAssistant {
		return a2a.MessageRoleAgent
	}
	return a2a.MessageRoleUser
}

func fromA2ARole(role a2a.MessageRole) string {
	if role == a2a.MessageRoleAgent {
		return RoleAssistant
	}
	return RoleUser
}
