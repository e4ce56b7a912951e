package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"go.uber.org/zap"

	"github.com/agentwire/agentwire/a2a"
	"github.com/agentwire/agentwire/agui"
	"github.com/agentwire/agentwire/bridge"
)

// aguiRequest is the AG-UI style chat payload: message history in AG-UI
// shape plus run identifiers from the frontend.
type aguiRequest struct {
	Agent    string           `json:"agent,omitempty"`
	AgentURL string           `json:"agentUrl,omitempty"`
	APIKey   string           `json:"apiKey,omitempty"`
	ThreadID string           `json:"threadId,omitempty"`
	RunID    string           `json:"runId,omitempty"`
	Messages []events.Message `json:"messages"`
}

// handleAGUI runs one turn against the agent and streams it back translated
// into AG-UI protocol events, for frontends that speak AG-UI rather than
// raw agent SSE.
func (h *Handler) handleAGUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req aguiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, ok := lastUserMessage(req.Messages)
	if !ok {
		writeError(w, http.StatusBadRequest, "messages must contain a user message")
		return
	}

	endpoint, key, err := h.resolveAgent(req.Agent, req.AgentURL, req.APIKey)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := a2a.NewClient(endpoint,
		a2a.WithHTTPClient(h.httpClient),
		a2a.WithAPIKey(key),
		a2a.WithLogger(h.log),
	)
	sink := agui.NewSink(agui.NewSSEWriter(w),
		agui.WithThreadID(req.ThreadID),
		agui.WithRunID(req.RunID),
	)
	conv := bridge.NewConversation(client, sink, bridge.WithConversationLogger(h.log))

	ctx, cancel := h.turnContext(r.Context())
	defer cancel()

	// Headers are already streaming; the sink's terminal emission carries
	// any failure to the frontend.
	if err := conv.Send(ctx, user); err != nil {
		h.log.Warn("agui turn ended with error",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
}

// lastUserMessage picks the newest user message from AG-UI history; prior
// turns ride along through the agent's own context tracking.
func lastUserMessage(msgs []events.Message) (a2a.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == agui.RoleUser {
			return agui.ToA2AMessage(msgs[i]), true
		}
	}
	return a2a.Message{}, false
}
