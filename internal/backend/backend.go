// Package backend defines the model-backend contract and the router that
// keeps the shell responsive when a backend stalls or errors.
package backend

import (
	"context"
	"errors"
)

// Message is one turn of backend conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one increment of a streamed reply. Err is non-nil on the final
// chunk of a failed stream.
type Chunk struct {
	Delta string
	Done  bool
	Err   error
}

// Backend is the black-box language-model service. Implementations own
// their conversation history; SetSystemPrompt persists across calls within
// a session.
type Backend interface {
	Name() string
	Chat(ctx context.Context, prompt string) (string, error)
	ChatStream(ctx context.Context, prompt string) (<-chan Chunk, error)
	SetSystemPrompt(prompt string)
	SetModel(model string)
	Model() string
	CheckConnection(ctx context.Context) bool
}

// ErrTimeout reports that a backend call exceeded the router's hard
// per-call deadline.
var ErrTimeout = errors.New("backend call timed out")

// ErrStalled reports that a streamed call produced no chunk within the
// stall window. Distinct from ErrTimeout so callers can retry non-streamed
// instead of repeating the same streamed call.
var ErrStalled = errors.New("backend stream stalled")
