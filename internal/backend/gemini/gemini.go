// Package gemini implements the backend contract on top of the Google
// genai SDK. It is typically wired as the router's fallback backend.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/Cyclone1070/nlshell/internal/backend"
	"google.golang.org/genai"
)

// generativeClient is the thin seam over the genai SDK, defined here so
// tests can substitute a fake.
type generativeClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	ListModels(ctx context.Context) error
}

// SDKClient implements generativeClient against a real genai.Client.
type SDKClient struct {
	client *genai.Client
}

// NewSDKClient wraps a genai.Client.
func NewSDKClient(client *genai.Client) *SDKClient {
	return &SDKClient{client: client}
}

func (c *SDKClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

func (c *SDKClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return c.client.Models.GenerateContentStream(ctx, model, contents, config)
}

// ListModels pulls the first page of the model listing as a liveness probe.
func (c *SDKClient) ListModels(ctx context.Context) error {
	for _, err := range c.client.Models.All(ctx) {
		return err
	}
	return nil
}

// Client adapts genai generation to the Backend interface, maintaining a
// bounded conversation history like the Ollama client.
type Client struct {
	client      generativeClient
	temperature float32
	topP        float32
	maxMessages int

	mu      sync.Mutex
	model   string
	system  string
	history []backend.Message
}

// New creates a Client for the given model.
func New(client generativeClient, model string, temperature, topP float32, maxMessages int) *Client {
	if client == nil {
		panic("client is required")
	}
	if maxMessages < 1 {
		maxMessages = 10
	}
	return &Client{
		client:      client,
		temperature: temperature,
		topP:        topP,
		maxMessages: maxMessages,
		model:       model,
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = prompt
}

func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Chat sends prompt with history and returns the full reply text.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	contents, config, model := c.prepare(prompt)

	resp, err := c.client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text candidates")
	}

	c.pushAssistant(text)
	return text, nil
}

// ChatStream sends prompt and yields incremental chunks.
func (c *Client) ChatStream(ctx context.Context, prompt string) (<-chan backend.Chunk, error) {
	contents, config, model := c.prepare(prompt)

	out := make(chan backend.Chunk)
	go func() {
		defer close(out)

		var full string
		for resp, err := range c.client.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				out <- backend.Chunk{Err: fmt.Errorf("gemini stream failed: %w", err)}
				return
			}
			delta := responseText(resp)
			full += delta
			select {
			case out <- backend.Chunk{Delta: delta}:
			case <-ctx.Done():
				out <- backend.Chunk{Err: ctx.Err()}
				return
			}
		}
		c.pushAssistant(full)
		out <- backend.Chunk{Done: true}
	}()
	return out, nil
}

// CheckConnection reports whether the API answers a model listing.
func (c *Client) CheckConnection(ctx context.Context) bool {
	return c.client.ListModels(ctx) == nil
}

// prepare appends the user turn and builds the request parts.
func (c *Client) prepare(prompt string) ([]*genai.Content, *genai.GenerateContentConfig, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, backend.Message{Role: "user", Content: prompt})
	if len(c.history) > c.maxMessages {
		c.history = c.history[len(c.history)-c.maxMessages:]
	}

	contents := make([]*genai.Content, 0, len(c.history))
	for _, msg := range c.history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		TopP:        genai.Ptr(c.topP),
	}
	if c.system != "" {
		config.SystemInstruction = genai.NewContentFromText(c.system, genai.RoleUser)
	}
	return contents, config, c.model
}

func (c *Client) pushAssistant(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, backend.Message{Role: "assistant", Content: content})
}

// responseText flattens the first candidate's text parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}
