// Package ollama implements the model backend over the Ollama /api/chat
// HTTP contract. It is the only component that speaks the wire format;
// everything above it works with conversation turns.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shellm/internal/conversation"
)

const (
	// DefaultHost is the local Ollama server address.
	DefaultHost = "http://localhost:11434"

	// DefaultModel is used when no model is configured.
	DefaultModel = "llama3.2"
)

// ErrMalformedResponse marks a payload that violates the chat contract
// (a chunk or reply without a message object). Distinguished from
// transport failures so callers can tell a broken backend from an
// unreachable one.
var ErrMalformedResponse = errors.New("malformed chat response")

// Config holds client settings.
type Config struct {
	// Host is the Ollama base URL, e.g. http://localhost:11434.
	Host string

	// Model is the model identifier sent with every request.
	Model string

	// Timeout bounds non-streaming requests. Zero means 120s.
	Timeout time.Duration
}

// Client talks to one Ollama server with one model. It implements
// conversation.Backend.
type Client struct {
	host   string
	model  string
	logger *zap.Logger

	// Separate clients: the blocking one carries a hard timeout, the
	// streaming one must stay open for the whole fragment sequence and
	// is bounded by the request context instead.
	blocking  *http.Client
	streaming *http.Client
}

// New creates a client. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:      cfg.Host,
		model:     cfg.Model,
		logger:    logger,
		blocking:  &http.Client{Timeout: cfg.Timeout},
		streaming: &http.Client{},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message *chatMessage `json:"message"`
	Done    bool         `json:"done"`
	Error   string       `json:"error,omitempty"`
}

// Chat issues one blocking /api/chat request and returns the complete
// reply text.
func (c *Client) Chat(ctx context.Context, turns []conversation.Turn) (string, error) {
	resp, err := c.post(ctx, c.blocking, turns, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("ollama error: %s", payload.Error)
	}
	if payload.Message == nil {
		return "", fmt.Errorf("%w: missing message object", ErrMalformedResponse)
	}

	c.logger.Debug("chat complete",
		zap.String("model", c.model),
		zap.Int("reply_bytes", len(payload.Message.Content)))
	return payload.Message.Content, nil
}

// ChatStream issues a streaming /api/chat request. The response is
// NDJSON: one chunk per line, each carrying a message fragment, with
// done=true on the final chunk. Concatenating the fragments in order
// reconstitutes the full reply.
func (c *Client) ChatStream(ctx context.Context, turns []conversation.Turn) (conversation.FragmentStream, error) {
	resp, err := c.post(ctx, c.streaming, turns, true)
	if err != nil {
		return nil, err
	}
	return &chunkStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

func (c *Client) post(ctx context.Context, client *http.Client, turns []conversation.Turn, stream bool) (*http.Response, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(turns)),
		Stream:   stream,
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, chatMessage{Role: string(t.Role), Content: t.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending chat request",
		zap.String("model", c.model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", stream))

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

// chunkStream adapts the NDJSON response body to a fragment stream.
type chunkStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	done bool
}

// Recv decodes the next chunk. Empty fragments are skipped; io.EOF is
// returned once the done chunk (or the end of the body) is reached.
func (s *chunkStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		var chunk chatResponse
		if err := s.dec.Decode(&chunk); err != nil {
			s.finish()
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("decode chat chunk: %w", err)
		}
		if chunk.Error != "" {
			s.finish()
			return "", fmt.Errorf("ollama error: %s", chunk.Error)
		}
		if chunk.Message == nil {
			s.finish()
			return "", fmt.Errorf("%w: chunk missing message object", ErrMalformedResponse)
		}
		if chunk.Done {
			s.finish()
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
			return "", io.EOF
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
}

func (s *chunkStream) Close() error {
	if s.done {
		return nil
	}
	s.finish()
	return nil
}

func (s *chunkStream) finish() {
	if !s.done {
		s.done = true
		_ = s.body.Close()
	}
}
