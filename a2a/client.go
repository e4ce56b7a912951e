package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
)

// Client is an A2A protocol client for calling remote agents.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithLogger sets the client logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(client *Client) {
		client.log = log
	}
}

// NewClient creates a new A2A client for the given endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the agent endpoint this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// jsonRPCRequest represents a JSON-RPC 2.0 request.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// SendMessageRequest represents an A2A message/send or message/stream
// request.
type SendMessageRequest struct {
	Message       Message                   `json:"message"`
	Configuration *SendMessageConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}

// SendMessageConfiguration contains options for the send request.
type SendMessageConfiguration struct {
	// AcceptedOutputModes specifies the output formats the client can handle.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`

	// HistoryLength controls how much conversation context to include.
	HistoryLength *int `json:"historyLength,omitempty"`

	// Blocking waits for task completion before returning.
	Blocking bool `json:"blocking,omitempty"`
}

// SendMessage sends a message to the remote agent and returns the resulting
// task.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	resp, err := c.post(ctx, "message/send", req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &agentwire.TransportError{Op: "read", Cause: err}
	}

	var frame Frame
	if err := json.Unmarshal(respBody, &frame); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if frame.Error != nil {
		return nil, &agentwire.ProtocolError{Code: frame.Error.Code, Message: frame.Error.Message}
	}

	var task Task
	if err := json.Unmarshal(frame.Result, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	return &task, nil
}

// Stream is an open streaming turn. Close releases the underlying
// connection; callers must Close when done, including after cancellation.
type Stream struct {
	*StreamReader
	body io.ReadCloser
}

// Close closes the underlying response body, aborting any blocked read.
func (s *Stream) Close() error {
	return s.body.Close()
}

// StreamMessage opens a message/stream turn and returns the event stream.
// The returned stream yields events until io.EOF; read failures caused by
// context cancellation unwind through the transport error path.
func (c *Client) StreamMessage(ctx context.Context, req SendMessageRequest) (*Stream, error) {
	resp, err := c.post(ctx, "message/stream", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return &Stream{
		StreamReader: NewStreamReader(resp.Body, c.log),
		body:         resp.Body,
	}, nil
}

// CancelTask sends a tasks/cancel request for the given task ID. Used as a
// best-effort notification; callers typically log and ignore the error.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	resp, err := c.post(ctx, "tasks/cancel", map[string]any{"id": taskID}, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &agentwire.TransportError{Op: "read", Cause: err}
	}

	var frame Frame
	if err := json.Unmarshal(respBody, &frame); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if frame.Error != nil {
		return &agentwire.ProtocolError{Code: frame.Error.Code, Message: frame.Error.Message}
	}
	return nil
}

func (c *Client) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	rpcReq := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &agentwire.TransportError{Op: "connect", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &agentwire.TransportError{Op: method, StatusCode: resp.StatusCode}
	}
	if resp.Body == nil {
		return nil, &agentwire.TransportError{Op: method, Cause: fmt.Errorf("missing response body")}
	}
	return resp, nil
}
