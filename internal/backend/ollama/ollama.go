// Package ollama implements the backend contract against an Ollama HTTP
// endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Cyclone1070/nlshell/internal/backend"
)

// Options tune generation on every request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Client talks to an Ollama server and maintains the session's conversation
// history, bounded to maxMessages (the system prompt is always retained).
type Client struct {
	endpoint    string
	httpClient  *http.Client
	options     Options
	maxMessages int

	mu      sync.Mutex
	model   string
	system  string
	history []backend.Message
}

// New creates a Client. A nil httpClient falls back to http.DefaultClient;
// request deadlines come from the caller's context, not the client.
func New(endpoint, model string, options Options, maxMessages int, httpClient *http.Client) *Client {
	if endpoint == "" {
		panic("endpoint is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxMessages < 1 {
		maxMessages = 10
	}
	return &Client{
		endpoint:    endpoint,
		httpClient:  httpClient,
		options:     options,
		maxMessages: maxMessages,
		model:       model,
	}
}

func (c *Client) Name() string { return "ollama" }

// SetSystemPrompt replaces the session's system message.
func (c *Client) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = prompt
}

// SetModel changes the model used for subsequent calls.
func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Model returns the currently active model name.
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []backend.Message `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  Options           `json:"options"`
}

type chatResponse struct {
	Message backend.Message `json:"message"`
	Done    bool            `json:"done"`
	Error   string          `json:"error,omitempty"`
}

// Chat sends prompt with the accumulated history and returns the full
// reply. The reply is appended to history on success.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	messages, model := c.pushUser(prompt)

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  c.options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	resp, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.httpError(resp)
	}

	var parsed chatResponse
	dec := json.NewDecoder(resp.Body)
	// Some endpoints reply with newline-delimited chunks even when
	// stream=false; the first value carries the message.
	if err := dec.Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}

	c.pushAssistant(parsed.Message.Content)
	return parsed.Message.Content, nil
}

// ChatStream sends prompt and returns a channel of incremental chunks. The
// channel is closed after the final chunk; a failed stream ends with a
// chunk whose Err is set.
func (c *Client) ChatStream(ctx context.Context, prompt string) (<-chan backend.Chunk, error) {
	messages, model := c.pushUser(prompt)

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		Options:  c.options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	resp, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.httpError(resp)
	}

	out := make(chan backend.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		var full bytes.Buffer
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var parsed chatResponse
			if err := json.Unmarshal(line, &parsed); err != nil {
				out <- backend.Chunk{Err: fmt.Errorf("failed to decode stream chunk: %w", err)}
				return
			}
			if parsed.Error != "" {
				out <- backend.Chunk{Err: fmt.Errorf("ollama error: %s", parsed.Error)}
				return
			}
			full.WriteString(parsed.Message.Content)
			if parsed.Done {
				c.pushAssistant(full.String())
				out <- backend.Chunk{Delta: parsed.Message.Content, Done: true}
				return
			}
			select {
			case out <- backend.Chunk{Delta: parsed.Message.Content}:
			case <-ctx.Done():
				out <- backend.Chunk{Err: ctx.Err()}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- backend.Chunk{Err: err}
			return
		}
		// Stream ended without a done marker; keep what arrived.
		c.pushAssistant(full.String())
		out <- backend.Chunk{Done: true}
	}()
	return out, nil
}

// CheckConnection probes the server's tag listing as a liveness check.
func (c *Client) CheckConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ClearHistory drops the conversation history but keeps the system prompt.
func (c *Client) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ollama at %s: %w", c.endpoint, err)
	}
	return resp, nil
}

func (c *Client) httpError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("ollama returned %s: %s", resp.Status, bytes.TrimSpace(data))
}

// pushUser appends the user message, trims history to the configured bound,
// and returns the message list for the request (system prompt first).
func (c *Client) pushUser(prompt string) ([]backend.Message, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, backend.Message{Role: "user", Content: prompt})
	if len(c.history) > c.maxMessages {
		c.history = c.history[len(c.history)-c.maxMessages:]
	}

	messages := make([]backend.Message, 0, len(c.history)+1)
	if c.system != "" {
		messages = append(messages, backend.Message{Role: "system", Content: c.system})
	}
	messages = append(messages, c.history...)
	return messages, c.model
}

func (c *Client) pushAssistant(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, backend.Message{Role: "assistant", Content: content})
}
