package a2a

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
)

func readAll(t *testing.T, sr *StreamReader) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestStreamReader_DecodesStatusUpdates(t *testing.T) {
	input := strings.Join([]string{
		`data: {"jsonrpc":"2.0","id":"1","result":{"kind":"status-update","taskId":"t1","status":{"state":"working","message":{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"Hel"}]}}}}`,
		`data: {"jsonrpc":"2.0","id":"1","result":{"kind":"status-update","taskId":"t1","status":{"state":"completed"},"final":true}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 2)

	first, ok := events[0].(StatusUpdate)
	require.True(t, ok)
	assert.Equal(t, "t1", first.TaskID)
	require.NotNil(t, first.Status.Message)
	assert.Equal(t, "Hel", first.Status.Message.TextContent())
	assert.False(t, first.Final)

	second, ok := events[1].(StatusUpdate)
	require.True(t, ok)
	assert.True(t, second.Final)
	assert.Equal(t, TaskStateCompleted, second.Status.State)
}

func TestStreamReader_IgnoresNonDataLines(t *testing.T) {
	input := strings.Join([]string{
		`event: message`,
		`id: 42`,
		`: keep-alive`,
		`data: {"result":{"kind":"status-update","final":true,"status":{"state":"completed"}}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)
}

func TestStreamReader_EndMarkerIsSkippedNotTerminal(t *testing.T) {
	// [DONE] mid-stream must not end parsing; the event after it is kept.
	input := strings.Join([]string{
		`data: [DONE]`,
		`data: {"result":{"kind":"status-update","status":{"state":"working"}}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)
}

func TestStreamReader_MalformedLineIsSkipped(t *testing.T) {
	// Scenario: a bad line followed by a valid final frame still finalizes.
	input := strings.Join([]string{
		`data: {not valid json`,
		`data: {"result":{"kind":"status-update","final":true,"status":{"state":"completed"}}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)

	su, ok := events[0].(StatusUpdate)
	require.True(t, ok)
	assert.True(t, su.Final)

	_, ok = sr.TakeDiagnostic()
	assert.False(t, ok, "plain garbage should not produce a diagnostic")
}

func TestStreamReader_BackendExceptionProducesOneDiagnostic(t *testing.T) {
	input := strings.Join([]string{
		`data: Traceback (most recent call last): File "agent.py", line 10`,
		`data: Traceback (most recent call last): File "agent.py", line 99`,
		`data: {"result":{"kind":"status-update","final":true,"status":{"state":"completed"}}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)

	diag, ok := sr.TakeDiagnostic()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(diag, "Backend error:"), "got %q", diag)
	assert.Contains(t, diag, "Traceback")

	// Drained, and repeated exception lines never produce a second one.
	_, ok = sr.TakeDiagnostic()
	assert.False(t, ok)
}

func TestStreamReader_RPCErrorFrame(t *testing.T) {
	input := strings.Join([]string{
		`data: {"jsonrpc":"2.0","id":"1","error":{"code":-32000,"message":"agent exploded"}}`,
		`data: {"result":{"kind":"status-update","status":{"state":"working"}}}`,
		``,
	}, "\n")

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())

	_, err := sr.Next()
	var perr *agentwire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -32000, perr.Code)
	assert.Equal(t, "agent exploded", perr.Message)

	// The stream is not aborted pre-emptively; remaining frames still decode.
	ev, err := sr.Next()
	require.NoError(t, err)
	_, ok := ev.(StatusUpdate)
	assert.True(t, ok)
}

func TestStreamReader_ArtifactUpdate(t *testing.T) {
	input := `data: {"result":{"kind":"artifact-update","taskId":"t1","artifact":{"artifactId":"a1","parts":[{"kind":"text","text":"chunk"},{"kind":"file","file":{"name":"out.csv","mimeType":"text/csv","uri":"https://example.com/out.csv"}}]}}}` + "\n"

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)

	au, ok := events[0].(ArtifactUpdate)
	require.True(t, ok)
	require.Len(t, au.Artifact.Parts, 2)
	assert.IsType(t, TextPart{}, au.Artifact.Parts[0])
	fp, ok := au.Artifact.Parts[1].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "out.csv", fp.File.Name)
}

func TestStreamReader_TaskSnapshotCarriesTaskID(t *testing.T) {
	input := `data: {"result":{"kind":"task","id":"task-7","contextId":"ctx-1","status":{"state":"submitted"}}}` + "\n"

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)

	ts, ok := events[0].(TaskSnapshot)
	require.True(t, ok)
	assert.Equal(t, "task-7", ts.ID)
}

func TestStreamReader_CRLFLines(t *testing.T) {
	input := "data: {\"result\":{\"kind\":\"status-update\",\"status\":{\"state\":\"working\"}}}\r\n"

	sr := NewStreamReader(strings.NewReader(input), zap.NewNop())
	events := readAll(t, sr)
	require.Len(t, events, 1)
}

func TestStreamReader_EmptyStream(t *testing.T) {
	sr := NewStreamReader(strings.NewReader(""), zap.NewNop())
	_, err := sr.Next()
	assert.ErrorIs(t, err, io.EOF)
}
