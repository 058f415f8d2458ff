// Package memory keeps the per-agent conversation history. Every agent in a
// world records every message it observes, whether or not it was addressed,
// so a later mention finds the agent already caught up.
package memory

import (
	"sync"

	"github.com/yysun/agent-world-sub006/messages"
)

// History is an append-only record of the messages one agent has seen.
// It is safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	owner   string
	entries []messages.Message
}

func New(owner string) *History {
	return &History{owner: owner}
}

// Owner returns the name of the agent this history belongs to.
func (h *History) Owner() string {
	return h.owner
}

func (h *History) Append(msg messages.Message) {
	h.mu.Lock()
	h.entries = append(h.entries, msg)
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Snapshot returns a copy of the recorded messages in arrival order. The
// caller can hold on to it without blocking further appends.
func (h *History) Snapshot() []messages.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]messages.Message, len(h.entries))
	copy(out, h.entries)
	return out
}
