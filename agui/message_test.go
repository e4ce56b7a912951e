package agui

import (
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/a2a"
)

func strPtr(s string) *string { return &s }

func TestToA2AMessage(t *testing.T) {
	t.Run("user text", func(t *testing.T) {
		msg := ToA2AMessage(events.Message{
			ID:      "msg-1",
			Role:    RoleUser,
			Content: strPtr("hello"),
		})
		assert.Equal(t, a2a.MessageRoleUser, msg.Role)
		assert.Equal(t, "msg-1", msg.MessageID)
		assert.Equal(t, "hello", msg.TextContent())
	})

	t.Run("assistant tool calls", func(t *testing.T) {
		msg := ToA2AMessage(events.Message{
			Role: RoleAssistant,
			ToolCalls: []events.ToolCall{{
				ID:   "tc-1",
				Type: "function",
				Function: events.Function{
					Name:      "search",
					Arguments: `{"q":"go"}`,
				},
			}},
		})
		assert.Equal(t, a2a.MessageRoleAgent, msg.Role)
		require.Len(t, msg.Parts, 1)
		dp, ok := msg.Parts[0].(a2a.DataPart)
		require.True(t, ok)
		assert.Equal(t, "tool_call", dp.Data["type"])
		assert.Equal(t, "search", dp.Data["name"])
	})

	t.Run("tool result", func(t *testing.T) {
		msg := ToA2AMessage(events.Message{
			Role:       RoleTool,
			ToolCallID: strPtr("tc-1"),
			Content:    strPtr("3 hits"),
		})
		require.Len(t, msg.Parts, 2)
		dp, ok := msg.Parts[1].(a2a.DataPart)
		require.True(t, ok)
		assert.Equal(t, "tool_result", dp.Data["type"])
		assert.Equal(t, "tc-1", dp.Data["tool_call_id"])
	})

	t.Run("generates message id when absent", func(t *testing.T) {
		msg := ToA2AMessage(events.Message{Role: RoleUser, Content: strPtr("x")})
		assert.NotEmpty(t, msg.MessageID)
	})
}

func TestFromA2AMessages(t *testing.T) {
	msgs := FromA2AMessages([]a2a.Message{
		a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart("question")),
		a2a.NewMessage(a2a.MessageRoleAgent, a2a.NewTextPart("answer")),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Content)
	assert.Equal(t, "answer", *msgs[1].Content)
}

func TestRoleRoundTrip(t *testing.T) {
	assert.Equal(t, a2a.MessageRoleAgent, toA2ARole(RoleAssistant))
	assert.Equal(t, a2a.MessageRoleUser, toA2ARole(RoleSystem))
	assert.Equal(t, RoleAssistant, fromA2ARole(a2a.MessageRoleAgent))
	assert.Equal(t, RoleUser, fromA2ARole(a2a.MessageRoleUser))
}
