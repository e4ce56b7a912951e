// Package card discovers and validates agent cards, the self-describing
// documents agents publish at a well-known path.
package card

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/retry"
)

// WellKnownPath is where agents publish their card.
const WellKnownPath = "/.well-known/agent.json"

// maxCardSize bounds the card document. Cards are small; anything larger is
// not a card.
const maxCardSize = 1 * 1024 * 1024

// Card describes a remote agent: identity, endpoint and capabilities.
type Card struct {
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	URL                string         `json:"url"`
	Version            string         `json:"version,omitempty"`
	Capabilities       Capabilities   `json:"capabilities"`
	DefaultInputModes  []string       `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string       `json:"defaultOutputModes,omitempty"`
	Skills             []Skill        `json:"skills,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Capabilities lists the protocol features an agent supports.
type Capabilities struct {
	Streaming         bool        `json:"streaming,omitempty"`
	PushNotifications bool        `json:"pushNotifications,omitempty"`
	Extensions        []Extension `json:"extensions,omitempty"`
}

// Extension declares support for one protocol extension.
type Extension struct {
	URI         string `json:"uri"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Skill is one advertised capability of the agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SupportsStreaming reports whether the agent accepts message/stream.
func (c *Card) SupportsStreaming() bool {
	return c.Capabilities.Streaming
}

// SupportsExtension reports whether the agent declares the given extension
// URI.
func (c *Card) SupportsExtension(uri string) bool {
	for _, ext := range c.Capabilities.Extensions {
		if ext.URI == uri {
			return true
		}
	}
	return false
}

// Fetcher retrieves agent cards over HTTP with retry on transient failures.
type Fetcher struct {
	httpClient *http.Client
	retryCfg   retry.Config
	log        *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithRetryConfig sets the retry policy for card fetches.
func WithRetryConfig(cfg retry.Config) FetcherOption {
	return func(f *Fetcher) { f.retryCfg = cfg }
}

// WithLogger sets the fetcher logger.
func WithLogger(log *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher creates a card Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: http.DefaultClient,
		retryCfg:   retry.DefaultConfig(),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and validates the card of the agent at baseURL. The
// well-known path is appended unless baseURL already points at a card
// document.
func (f *Fetcher) Fetch(ctx context.Context, baseURL string) (*Card, error) {
	url := CardURL(baseURL)

	card, err := retry.Do(ctx, f.retryCfg, func() (*Card, error) {
		return f.fetchOnce(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	f.log.Debug("agent card fetched",
		zap.String("url", url),
		zap.String("agent", card.Name),
		zap.Bool("streaming", card.Capabilities.Streaming),
	)
	return card, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &agentwire.TransportError{Op: "card", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &agentwire.TransportError{Op: "card", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCardSize))
	if err != nil {
		return nil, &agentwire.TransportError{Op: "card", Cause: err}
	}

	if err := Validate(body); err != nil {
		return nil, err
	}

	var card Card
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("failed to parse agent card: %w", err)
	}
	return &card, nil
}

// CardURL resolves the card document URL for an agent base URL.
func CardURL(baseURL string) string {
	if strings.HasSuffix(baseURL, ".json") {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + WellKnownPath
}
