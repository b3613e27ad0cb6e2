// Package session holds per-run conversation state: bounded message
// history, the rollback ledger and the current task plan.
package session

import (
	"sync"

	"github.com/Cyclone1070/nlshell/internal/backend"
	"github.com/Cyclone1070/nlshell/internal/executor"
	"github.com/Cyclone1070/nlshell/internal/safety"
)

// DefaultMaxMessages bounds the retained conversation history.
const DefaultMaxMessages = 10

// Session is safe for concurrent use. History is lost when the process
// exits; only the operation log persists through the logger.
type Session struct {
	mu          sync.Mutex
	history     []backend.Message
	maxMessages int
	ledger      *safety.Ledger
	plan        *executor.Plan
}

// New creates a Session. maxMessages below 1 falls back to the default.
func New(maxMessages int, ledger *safety.Ledger) *Session {
	if maxMessages < 1 {
		maxMessages = DefaultMaxMessages
	}
	if ledger == nil {
		panic("ledger is required")
	}
	return &Session{maxMessages: maxMessages, ledger: ledger}
}

// Append records one message and evicts the oldest entries past the bound.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, backend.Message{Role: role, Content: content})
	if len(s.history) > s.maxMessages {
		s.history = s.history[len(s.history)-s.maxMessages:]
	}
}

// History returns a copy of the retained conversation.
func (s *Session) History() []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.Message, len(s.history))
	copy(out, s.history)
	return out
}

// SetPlan replaces the current task plan; nil clears it.
func (s *Session) SetPlan(plan *executor.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
}

// Plan returns the current task plan, or nil.
func (s *Session) Plan() *executor.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Rollback undoes the identified operation via the ledger.
func (s *Session) Rollback(id string) bool {
	return s.ledger.Rollback(id)
}

// Operations returns the ledger history, oldest first.
func (s *Session) Operations() []safety.Operation {
	return s.ledger.History()
}

// Reset drops the conversation, the plan and all rollback state.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.plan = nil
	s.mu.Unlock()

	s.ledger.Clear()
}
