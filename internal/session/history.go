// Package session holds the durable conversation state for one chat session.
//
// History is append-only and contains dialogue turns only: one system turn set
// once at session start, then user/assistant pairs appended after each
// completed turn. Retrieved source content is never written here — source
// blocks are injected into the single outgoing message of the current call
// and discarded, which keeps conversational memory bounded by actual dialogue
// instead of growing with every turn's retrieved context.
package session

import (
	"errors"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// Sentinel errors for history operations, checked with errors.Is().
var (
	// ErrSystemAlreadySet indicates SetSystem was called twice.
	ErrSystemAlreadySet = errors.New("system turn already set")

	// ErrSystemNotSet indicates a user turn was appended before the system turn.
	ErrSystemNotSet = errors.New("system turn not set")

	// ErrNoUserTurn indicates an assistant turn was appended without a
	// preceding user turn.
	ErrNoUserTurn = errors.New("no user turn to answer")
)

// History is an append-only conversation transcript. Safe for concurrent
// reads; writes come from a single orchestrator per session.
//
// The zero value is not useful; use NewHistory.
type History struct {
	mu       sync.RWMutex
	messages []*ai.Message
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{messages: make([]*ai.Message, 0, 8)}
}

// SetSystem sets the session's system turn. Allowed exactly once, before any
// user turn; the system turn is always the first element and never mutated.
func (h *History) SetSystem(content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 {
		return ErrSystemAlreadySet
	}
	h.messages = append(h.messages, &ai.Message{
		Role:    ai.RoleSystem,
		Content: []*ai.Part{ai.NewTextPart(content)},
	})
	return nil
}

// AddUser appends a user turn. The system turn must be set first.
func (h *History) AddUser(content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) == 0 {
		return ErrSystemNotSet
	}
	h.messages = append(h.messages, ai.NewUserMessage(ai.NewTextPart(content)))
	return nil
}

// AddAssistant appends an assistant turn answering the most recent user turn.
func (h *History) AddAssistant(content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) == 0 {
		return ErrSystemNotSet
	}
	if h.messages[len(h.messages)-1].Role != ai.RoleUser {
		return ErrNoUserTurn
	}
	h.messages = append(h.messages, ai.NewModelMessage(ai.NewTextPart(content)))
	return nil
}

// Snapshot returns a copy of the transcript for passing to the generator.
// The slice is fresh; callers may append to it without affecting the history.
func (h *History) Snapshot() []*ai.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make([]*ai.Message, len(h.messages))
	copy(snapshot, h.messages)
	return snapshot
}

// Len returns the number of turns, including the system turn.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
