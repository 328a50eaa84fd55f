package conversation

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Backend is the model-serving collaborator. It receives the full
// accumulated history and returns either a complete reply or a lazy
// fragment stream. Implementations live outside this package (the
// Ollama client); tests use in-memory fakes.
type Backend interface {
	// Chat issues one blocking request and returns the complete reply.
	Chat(ctx context.Context, turns []Turn) (string, error)

	// ChatStream issues a streaming request. The returned stream is a
	// finite, non-restartable sequence of text fragments.
	ChatStream(ctx context.Context, turns []Turn) (FragmentStream, error)
}

// FragmentStream yields reply fragments as they arrive. Recv returns
// io.EOF once the sequence is exhausted; any other error means the
// stream failed mid-flight. Close abandons the stream early.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// Conversation is the model gateway: the single owner of a History and
// the only component that mutates it. Each Send or Stream call appends
// exactly one user turn and, on success, exactly one assistant turn.
type Conversation struct {
	backend Backend
	history *History
	logger  *zap.Logger
}

// Config holds conversation settings.
type Config struct {
	// MaxTurns bounds the history window; <= 0 means unbounded.
	MaxTurns int
}

// New creates a conversation over the given backend. A nil logger is
// replaced with a no-op logger.
func New(backend Backend, cfg Config, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		backend: backend,
		history: NewHistory(cfg.MaxTurns),
		logger:  logger,
	}
}

// History returns the underlying store for inspection (Snapshot, Len,
// Clear). Callers must not append to it directly.
func (c *Conversation) History() *History {
	return c.history
}

// Send appends message as a user turn, issues one blocking request with
// the full history, appends the reply as an assistant turn, trims, and
// returns the reply text. On backend failure no assistant turn is
// appended and the error propagates.
func (c *Conversation) Send(ctx context.Context, message string) (string, error) {
	c.history.Append(User(message))

	reply, err := c.backend.Chat(ctx, c.history.Snapshot())
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}

	c.history.Append(Assistant(reply))
	c.history.Trim()

	c.logger.Debug("exchange complete",
		zap.Int("history_len", c.history.Len()),
		zap.Int("reply_bytes", len(reply)))
	return reply, nil
}

// Stream appends message as a user turn and starts a streaming request.
// The caller drains the returned Stream; fragments are visible as they
// arrive, but the history is only mutated once, when the stream is
// exhausted. If the backend fails before producing the stream, no
// assistant turn is appended and the error propagates.
func (c *Conversation) Stream(ctx context.Context, message string) (*Stream, error) {
	c.history.Append(User(message))

	fragments, err := c.backend.ChatStream(ctx, c.history.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("chat stream request: %w", err)
	}

	return &Stream{conv: c, fragments: fragments}, nil
}

// SendStream drives a streaming exchange to completion, invoking
// onFragment for each fragment, and returns the concatenated reply.
func (c *Conversation) SendStream(ctx context.Context, message string, onFragment func(string)) (string, error) {
	stream, err := c.Stream(ctx, message)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			return stream.Text(), nil
		}
		if err != nil {
			return "", err
		}
		if onFragment != nil {
			onFragment(fragment)
		}
	}
}

// Stream is the lazy assistant reply: a finite, non-restartable
// fragment sequence. Exhaustion is an explicit state transition: the
// first Recv that observes the end of the sequence appends the
// concatenated reply as a single assistant turn and trims the history.
type Stream struct {
	conv      *Conversation
	fragments FragmentStream
	buf       strings.Builder
	done      bool
}

// Recv returns the next fragment, or io.EOF once the stream is
// exhausted and the deferred history append has run.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	fragment, err := s.fragments.Recv()
	if err == io.EOF {
		s.complete()
		return "", io.EOF
	}
	if err != nil {
		// Failure latches: the partial reply is discarded and no later
		// Recv may reach the exhaustion append.
		s.done = true
		_ = s.fragments.Close()
		return "", fmt.Errorf("stream fragment: %w", err)
	}

	s.buf.WriteString(fragment)
	return fragment, nil
}

// Text returns the concatenation of all fragments received so far.
func (s *Stream) Text() string {
	return s.buf.String()
}

// Close abandons the stream. If it already completed this is a no-op;
// otherwise the partial reply is discarded and no assistant turn is
// appended.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.fragments.Close()
}

func (s *Stream) complete() {
	s.done = true
	_ = s.fragments.Close()
	s.conv.history.Append(Assistant(s.buf.String()))
	s.conv.history.Trim()
	s.conv.logger.Debug("stream complete",
		zap.Int("history_len", s.conv.history.Len()),
		zap.Int("reply_bytes", s.buf.Len()))
}
