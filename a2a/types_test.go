package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskState_IsTerminal(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "state %s", s)
	}

	nonTerminal := []TaskState{TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "state %s", s)
	}
}

func TestUnmarshalPart(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		p, err := UnmarshalPart([]byte(`{"kind":"text","text":"hi","metadata":{"content_type":"thinking"}}`))
		require.NoError(t, err)
		tp, ok := p.(TextPart)
		require.True(t, ok)
		assert.Equal(t, "hi", tp.Text)
		assert.Equal(t, "thinking", tp.GetMetadata()["content_type"])
	})

	t.Run("file", func(t *testing.T) {
		p, err := UnmarshalPart([]byte(`{"kind":"file","file":{"name":"a.png","mimeType":"image/png","uri":"https://x/a.png"}}`))
		require.NoError(t, err)
		fp, ok := p.(FilePart)
		require.True(t, ok)
		assert.Equal(t, "image/png", fp.File.MimeType)
	})

	t.Run("data", func(t *testing.T) {
		p, err := UnmarshalPart([]byte(`{"kind":"data","data":{"type":"tool_call","name":"search"}}`))
		require.NoError(t, err)
		dp, ok := p.(DataPart)
		require.True(t, ok)
		assert.Equal(t, "tool_call", dp.Data["type"])
	})

	t.Run("unknown kind decodes as data", func(t *testing.T) {
		p, err := UnmarshalPart([]byte(`{"kind":"hologram","data":{"x":1}}`))
		require.NoError(t, err)
		_, ok := p.(DataPart)
		assert.True(t, ok)
	})
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	raw := `{
		"kind": "message",
		"messageId": "m1",
		"role": "agent",
		"taskId": "t9",
		"parts": [
			{"kind": "text", "text": "Hello "},
			{"kind": "text", "text": "world"},
			{"kind": "data", "data": {"type": "tool_call", "name": "search"}}
		]
	}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, MessageRoleAgent, m.Role)
	assert.Equal(t, "t9", m.TaskID)
	require.Len(t, m.Parts, 3)
	assert.Equal(t, "Hello world", m.TextContent())
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(MessageRoleUser, NewTextPart("ask"))
	assert.Equal(t, "message", m.Kind)
	assert.NotEmpty(t, m.MessageID)
	assert.Equal(t, "ask", m.TextContent())
}

func TestUnmarshalEvent(t *testing.T) {
	t.Run("status-update", func(t *testing.T) {
		ev, err := UnmarshalEvent([]byte(`{"kind":"status-update","taskId":"t1","status":{"state":"working"},"final":false}`))
		require.NoError(t, err)
		su, ok := ev.(StatusUpdate)
		require.True(t, ok)
		assert.Equal(t, TaskStateWorking, su.Status.State)
	})

	t.Run("artifact-update", func(t *testing.T) {
		ev, err := UnmarshalEvent([]byte(`{"kind":"artifact-update","taskId":"t1","artifact":{"artifactId":"a1","parts":[{"kind":"text","text":"x"}]}}`))
		require.NoError(t, err)
		au, ok := ev.(ArtifactUpdate)
		require.True(t, ok)
		require.Len(t, au.Artifact.Parts, 1)
	})

	t.Run("message", func(t *testing.T) {
		ev, err := UnmarshalEvent([]byte(`{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"hi"}]}`))
		require.NoError(t, err)
		me, ok := ev.(MessageEvent)
		require.True(t, ok)
		assert.Equal(t, "hi", me.TextContent())
	})

	t.Run("unknown kind errors", func(t *testing.T) {
		_, err := UnmarshalEvent([]byte(`{"kind":"telepathy"}`))
		assert.Error(t, err)
	})
}
