package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentwire/agentwire/a2a"
)

// chatRequest is the browser-facing chat payload. Agents are addressed
// either by allowlisted name or by URL.
type chatRequest struct {
	Agent      string   `json:"agent,omitempty"`
	AgentURL   string   `json:"agentUrl,omitempty"`
	APIKey     string   `json:"apiKey,omitempty"`
	Message    string   `json:"message"`
	ContextID  string   `json:"contextId,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
}

// resolveAgent maps a request to an upstream endpoint and key. Named agents
// come from the allowlist; direct URLs must pass it.
func (h *Handler) resolveAgent(agent, agentURL, apiKey string) (endpoint, key string, err error) {
	cfg := h.store.Current()

	if agent != "" {
		a, ok := cfg.Agent(agent)
		if !ok {
			return "", "", fmt.Errorf("unknown agent %q", agent)
		}
		return a.URL, a.APIKey, nil
	}

	if agentURL == "" {
		return "", "", fmt.Errorf("agent or agentUrl is required")
	}
	if !cfg.AllowedAgentURL(agentURL) {
		return "", "", fmt.Errorf("agent url not allowlisted")
	}
	return agentURL, apiKey, nil
}

// handleChat forwards one chat message upstream and relays the raw SSE byte
// stream back to the browser. No parsing or translation happens here; the
// frontend owns the protocol.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	endpoint, key, err := h.resolveAgent(req.Agent, req.AgentURL, req.APIKey)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart(req.Message))
	msg.ContextID = req.ContextID
	msg.Extensions = req.Extensions

	ctx, cancel := h.turnContext(r.Context())
	defer cancel()

	resp, err := h.openStream(ctx, endpoint, key, msg)
	if err != nil {
		h.log.Warn("upstream stream failed", zap.String("endpoint", endpoint), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream agent unreachable")
		return
	}
	defer resp.Body.Close()

	h.relay(w, resp.Body)
}

// turnContext applies the configured per-turn timeout.
func (h *Handler) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := h.store.Current().Stream.RequestTimeout
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// openStream issues the upstream message/stream call and returns the raw
// response for relaying.
func (h *Handler) openStream(ctx context.Context, endpoint, key string, msg a2a.Message) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.New().String(),
		"method":  "message/stream",
		"params":  map[string]any{"message": msg},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return resp, nil
}

// relay copies the upstream SSE stream to the client, flushing as bytes
// arrive so deltas reach the browser immediately.
func (h *Handler) relay(w http.ResponseWriter, upstream io.Reader) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.log.Debug("client went away mid-relay", zap.Error(werr))
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.log.Warn("upstream read failed mid-relay", zap.Error(err))
			}
			return
		}
	}
}

// cancelRequest asks for best-effort cancellation of an upstream task.
type cancelRequest struct {
	Agent    string `json:"agent,omitempty"`
	AgentURL string `json:"agentUrl,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	TaskID   string `json:"taskId"`
}

// handleCancel relays a cancellation upstream. Delivery failures are logged
// and reported in the body, never as an HTTP error: cancellation is
// best-effort and the local turn is already being torn down.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	endpoint, key, err := h.resolveAgent(req.Agent, req.AgentURL, req.APIKey)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cancelTimeout())
	defer cancel()

	client := a2a.NewClient(endpoint,
		a2a.WithHTTPClient(h.httpClient),
		a2a.WithAPIKey(key),
		a2a.WithLogger(h.log),
	)

	delivered := true
	if err := client.CancelTask(ctx, req.TaskID); err != nil {
		delivered = false
		h.log.Warn("upstream cancel failed",
			zap.String("endpoint", endpoint),
			zap.String("task_id", req.TaskID),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"delivered": delivered})
}

func (h *Handler) cancelTimeout() time.Duration {
	if d := h.store.Current().Stream.CancelTimeout; d > 0 {
		return d
	}
	return 5 * time.Second
}

// handleCard fetches and returns the agent card for ?agent= or ?url=.
func (h *Handler) handleCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	endpoint, _, err := h.resolveAgent(r.URL.Query().Get("agent"), r.URL.Query().Get("url"), "")
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	c, err := h.cards.Fetch(r.Context(), endpoint)
	if err != nil {
		h.log.Warn("card fetch failed", zap.String("endpoint", endpoint), zap.Error(err))
		writeError(w, http.StatusBadGateway, "agent card unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}
