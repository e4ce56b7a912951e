package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/config"
)

func newTestHandler(t *testing.T, cfgYAML string) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agentwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfgYAML), 0o644))
	store, err := config.NewStore(path, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(New(store).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChatRelayPassesBytesThrough(t *testing.T) {
	upstreamBody := "data: {\"jsonrpc\":\"2.0\",\"id\":\"1\",\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"status\":{\"state\":\"completed\"},\"final\":true}}\n\ndata: [DONE]\n\n"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var call struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "message/stream", call.Method)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, upstreamBody)
	}))
	defer upstream.Close()

	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"agentUrl": upstream.URL,
		"apiKey":   "sk-test",
		"message":  "hello",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, upstreamBody, string(body))
}

func TestChatValidation(t *testing.T) {
	srv := newTestHandler(t, `
server:
  address: ":0"
agents:
  - name: research
    url: https://agent.example/a2a
`)

	t.Run("missing message", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"agentUrl": "https://agent.example/a2a"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown named agent", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"agent": "nope", "message": "hi"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("url not allowlisted", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"agentUrl": "https://rogue.example", "message": "hi"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("get not allowed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/chat")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestCancelBestEffort(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call struct {
			Method string `json:"method"`
			Params struct {
				ID string `json:"id"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "tasks/cancel", call.Method)
		assert.Equal(t, "task-1", call.Params.ID)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{"kind":"task","id":"task-1","contextId":"c1","status":{"state":"canceled"}}}`)
	}))
	defer upstream.Close()

	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp := postJSON(t, srv.URL+"/api/cancel", map[string]string{
		"agentUrl": upstream.URL,
		"taskId":   "task-1",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["delivered"])
}

func TestCancelFailureStillOK(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp := postJSON(t, srv.URL+"/api/cancel", map[string]string{
		"agentUrl": upstream.URL,
		"taskId":   "task-1",
	})

	// Cancellation is best-effort: delivery failure is not an HTTP error.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["delivered"])
}

func TestCardProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/agent.json", r.URL.Path)
		fmt.Fprint(w, `{"name": "research-agent", "url": "https://agent.example/a2a", "capabilities": {"streaming": true}}`)
	}))
	defer upstream.Close()

	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp, err := http.Get(srv.URL + "/api/card?url=" + upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "research-agent", body["name"])
}

func TestAGUITranslation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"jsonrpc":"2.0","id":"1","result":{"kind":"status-update","taskId":"t1","status":{"state":"working","message":{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"Hi there"}]}},"final":false}}`+"\n\n")
		fmt.Fprint(w, `data: {"jsonrpc":"2.0","id":"1","result":{"kind":"status-update","taskId":"t1","status":{"state":"completed"},"final":true}}`+"\n\n")
	}))
	defer upstream.Close()

	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp := postJSON(t, srv.URL+"/api/agui", map[string]any{
		"agentUrl": upstream.URL,
		"threadId": "th-1",
		"runId":    "run-1",
		"messages": []map[string]any{
			{"id": "u1", "role": "user", "content": "hello"},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 64*1024)
	var out strings.Builder
	for {
		n, err := resp.Body.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	body := out.String()
	assert.Contains(t, body, "RUN_STARTED")
	assert.Contains(t, body, "TEXT_MESSAGE_CONTENT")
	assert.Contains(t, body, "Hi there")
	assert.Contains(t, body, "RUN_FINISHED")
}

func TestAGUIRequiresUserMessage(t *testing.T) {
	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp := postJSON(t, srv.URL+"/api/agui", map[string]any{
		"agentUrl": "https://agent.example",
		"messages": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestHandler(t, `
server:
  address: ":0"
  allowed_origins:
    - https://chat.example
`)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://chat.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://chat.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req2, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/chat", nil)
	require.NoError(t, err)
	req2.Header.Set("Origin", "https://rogue.example")
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	srv := newTestHandler(t, "server:\n  address: \":0\"\n")
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
