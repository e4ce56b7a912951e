package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/a2a"
	"github.com/agentwire/agentwire/ui"
)

// cancelNotifyTimeout bounds the best-effort upstream cancel notification.
const cancelNotifyTimeout = 5 * time.Second

// Conversation drives one chat session against an agent: at most one
// in-flight response stream at a time, where a new send supersedes the
// previous turn and cancellation is propagated both to the network read and
// to the translation state.
type Conversation struct {
	client *a2a.Client
	sink   ui.Sink
	clock  Clock
	log    *zap.Logger

	mu      sync.Mutex
	current *turn
}

// turn is one in-flight response stream.
type turn struct {
	translator *Translator
	cancel     context.CancelFunc
	done       chan struct{}
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithConversationLogger sets the conversation logger.
func WithConversationLogger(log *zap.Logger) ConversationOption {
	return func(c *Conversation) { c.log = log }
}

// WithConversationClock sets the clock used for debounce timers.
func WithConversationClock(clock Clock) ConversationOption {
	return func(c *Conversation) { c.clock = clock }
}

// NewConversation creates a Conversation streaming agent responses from
// client into sink.
func NewConversation(client *a2a.Client, sink ui.Sink, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		client: client,
		sink:   sink,
		clock:  SystemClock(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText sends a plain text user message, blocking until the response is
// finalized.
func (c *Conversation) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart(text)))
}

// Send sends a user message and streams the agent's response into the sink,
// blocking until the turn is finalized. A previous in-flight turn is
// cancelled first. Whatever happens - terminal envelope, end of input,
// transport failure, cancellation - exactly one terminal emission reaches
// the sink.
func (c *Conversation) Send(ctx context.Context, msg a2a.Message) error {
	c.Cancel(context.Background())

	turnCtx, cancel := context.WithCancel(ctx)
	tr := NewTranslator(c.sink, WithClock(c.clock), WithLogger(c.log))
	tr.Begin()

	tn := &turn{translator: tr, cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.current = tn
	c.mu.Unlock()

	defer func() {
		close(tn.done)
		cancel()
		c.mu.Lock()
		if c.current == tn {
			c.current = nil
		}
		c.mu.Unlock()
	}()

	stream, err := c.client.StreamMessage(turnCtx, a2a.SendMessageRequest{Message: msg})
	if err != nil {
		// The user still gets exactly one terminal message.
		tr.Finalize(turnCtx, FinalizeOptions{Err: err})
		return err
	}
	defer stream.Close()

	return c.drain(turnCtx, tr, stream)
}

// drain is the read loop: strictly in arrival order, one envelope at a time,
// until a terminal signal, end of input, or a transport failure.
func (c *Conversation) drain(ctx context.Context, tr *Translator, stream *a2a.Stream) error {
	for {
		ev, err := stream.Next()

		// Surface any backend-exception diagnostic recorded while parsing,
		// before acting on the event or error it preceded.
		if diag, ok := stream.TakeDiagnostic(); ok {
			tr.AppendDiagnostic(ctx, diag)
		}

		switch {
		case err == nil:
			if final := tr.HandleEvent(ctx, ev); final {
				tr.Finalize(ctx, FinalizeOptions{})
				return nil
			}

		case errors.Is(err, io.EOF):
			// No terminal envelope observed: fall back, keeping everything
			// accumulated so far.
			tr.Finalize(ctx, FinalizeOptions{})
			return nil

		default:
			var perr *agentwire.ProtocolError
			if errors.As(err, &perr) {
				// Agent-reported error: record it and keep reading. The
				// stream is not aborted pre-emptively.
				tr.HandleProtocolError(ctx, perr)
				continue
			}
			// Transport failure (including an aborted read after Cancel).
			// Finalize is a no-op if cancellation already finalized.
			tr.Finalize(ctx, FinalizeOptions{Err: err})
			return err
		}
	}
}

// Cancel aborts the in-flight turn, if any: the network read is unwound via
// its context, the upstream agent is notified best-effort, and the partial
// result is finalized with a cancelled marker. Cancelling with no turn in
// flight is a no-op.
//
// Cancel may race with a finalize triggered by stream completion; the
// exactly-once guard inside the translator resolves the race, whichever
// fires first.
func (c *Conversation) Cancel(ctx context.Context) {
	c.mu.Lock()
	tn := c.current
	c.current = nil
	c.mu.Unlock()

	if tn == nil {
		return
	}

	tn.cancel()

	if taskID := tn.translator.TaskID(); taskID != "" {
		go c.notifyCancel(taskID)
	}

	tn.translator.Finalize(ctx, FinalizeOptions{Cancelled: true})
}

// notifyCancel tells the upstream agent to stop working on the task.
// Fire-and-forget: failure never blocks local cleanup.
func (c *Conversation) notifyCancel(taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelNotifyTimeout)
	defer cancel()

	if err := c.client.CancelTask(ctx, taskID); err != nil {
		c.log.Warn("upstream cancel notification failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}
