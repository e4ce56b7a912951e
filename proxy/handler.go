// Package proxy is the HTTP surface of the bridge: a thin pass-through that
// lets browser frontends talk to remote agents without exposing API keys or
// fighting CORS.
//
// Endpoints:
//
//	POST /api/chat   - forward a chat message, relay the raw SSE stream
//	POST /api/agui   - forward a chat message, translate the stream to AG-UI events
//	POST /api/cancel - best-effort upstream task cancellation
//	GET  /api/card   - fetch and validate an agent card
//	GET  /health     - liveness probe
package proxy

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire/card"
	"github.com/agentwire/agentwire/config"
)

// Handler serves the proxy endpoints.
type Handler struct {
	store      *config.Store
	cards      *card.Fetcher
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithHTTPClient sets the client used for upstream agent calls.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.httpClient = c }
}

// WithCardFetcher sets the agent card fetcher.
func WithCardFetcher(f *card.Fetcher) Option {
	return func(h *Handler) { h.cards = f }
}

// New creates a proxy Handler serving the configuration in store.
func New(store *config.Store, opts ...Option) *Handler {
	h := &Handler{
		store:      store,
		httpClient: http.DefaultClient,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cards == nil {
		h.cards = card.NewFetcher(card.WithHTTPClient(h.httpClient), card.WithLogger(h.log))
	}
	return h
}

// Routes returns the handler's route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/chat", h.cors(http.HandlerFunc(h.handleChat)))
	mux.Handle("/api/agui", h.cors(http.HandlerFunc(h.handleAGUI)))
	mux.Handle("/api/cancel", h.cors(http.HandlerFunc(h.handleCancel)))
	mux.Handle("/api/card", h.cors(http.HandlerFunc(h.handleCard)))
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// cors applies the configured origin allowlist and answers preflights. An
// empty allowlist reflects any origin, the mode used for local development.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && h.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) originAllowed(origin string) bool {
	allowed := h.store.Current().Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeError emits a JSON error body. Only usable before streaming started.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
