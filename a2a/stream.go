package a2a

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
)

const (
	sseDataPrefix = "data:"

	// endMarker is a sentinel payload some gateways emit before closing the
	// stream. It is skipped like any other non-frame line; termination is
	// detected structurally via the final flag or end of input.
	endMarker = "[DONE]"

	// maxFrameSize is the maximum size for one SSE data line. The default
	// bufio.Scanner buffer of 64KB is insufficient for inline file parts.
	maxFrameSize = 10 * 1024 * 1024

	// maxDiagnosticLen bounds the excerpt surfaced from a backend
	// exception dump.
	maxDiagnosticLen = 200
)

// backendExceptionMarkers identify payloads that look like an agent-side
// crash dump rather than ordinary garbage. Matching lines are surfaced as a
// visible diagnostic instead of being silently dropped.
var backendExceptionMarkers = []string{"Traceback", "Exception", "panic:"}

// Frame is one decoded JSON-RPC unit from the stream.
type Frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// StreamReader decodes an SSE byte stream into a sequence of protocol
// events. It tolerates partial reads (trailing incomplete lines are retained
// until extended), ignores lines without the data prefix, and recovers from
// malformed payloads by skipping them. A malformed payload that looks like a
// backend exception dump is converted into a one-time diagnostic retrievable
// via TakeDiagnostic.
//
// StreamReader is not safe for concurrent use.
type StreamReader struct {
	scanner *bufio.Scanner
	log     *zap.Logger

	pendingDiagnostic string
	diagnosticSeen    bool
}

// NewStreamReader creates a StreamReader over r. A nil logger defaults to a
// no-op logger.
func NewStreamReader(r io.Reader, log *zap.Logger) *StreamReader {
	if log == nil {
		log = zap.NewNop()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxFrameSize)
	return &StreamReader{scanner: scanner, log: log}
}

// Next returns the next decoded event from the stream.
//
// It returns io.EOF at orderly end of input and a *agentwire.TransportError
// if the underlying read fails. A frame carrying a JSON-RPC error object is
// returned as a *agentwire.ProtocolError; the stream remains readable
// afterwards. Malformed lines are logged and skipped, never returned as
// errors.
func (sr *StreamReader) Next() (Event, error) {
	for sr.scanner.Scan() {
		line := strings.TrimRight(sr.scanner.Text(), "\r")
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(sseDataPrefix):])
		if payload == "" || payload == endMarker {
			continue
		}

		var frame Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			sr.recordMalformed(payload, err)
			continue
		}

		if frame.Error != nil {
			return nil, &agentwire.ProtocolError{
				Code:    frame.Error.Code,
				Message: frame.Error.Message,
			}
		}
		if len(frame.Result) == 0 {
			sr.log.Debug("frame without result, skipping")
			continue
		}

		event, err := UnmarshalEvent(frame.Result)
		if err != nil {
			sr.recordMalformed(string(frame.Result), err)
			continue
		}
		return event, nil
	}

	if err := sr.scanner.Err(); err != nil {
		return nil, &agentwire.TransportError{Op: "read", Cause: err}
	}
	return nil, io.EOF
}

// TakeDiagnostic returns a pending backend-error diagnostic and clears it.
// At most one diagnostic is ever produced per stream, no matter how many
// exception-looking lines arrive.
func (sr *StreamReader) TakeDiagnostic() (string, bool) {
	if sr.pendingDiagnostic == "" {
		return "", false
	}
	d := sr.pendingDiagnostic
	sr.pendingDiagnostic = ""
	return d, true
}

func (sr *StreamReader) recordMalformed(payload string, err error) {
	sr.log.Warn("skipping malformed frame",
		zap.Error(&agentwire.ParseError{Line: truncate(payload, maxDiagnosticLen), Cause: err}))

	if sr.diagnosticSeen {
		return
	}
	for _, marker := range backendExceptionMarkers {
		if strings.Contains(payload, marker) {
			sr.diagnosticSeen = true
			sr.pendingDiagnostic = "Backend error: " + truncate(strings.TrimSpace(payload), maxDiagnosticLen)
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
