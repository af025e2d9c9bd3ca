package core

import (
	"sync"
)

// ChatHistory is the ordered, append-only conversation record of a run. It
// is safe for concurrent reads; writes are expected from a single goroutine
// (the scheduler loop) but are guarded anyway.
//
// Contract:
//   - Append never reorders or drops existing entries
//   - Messages returns a defensive copy to avoid external mutation
//   - Clone performs a deep copy for safe divergence
type ChatHistory struct {
	msgs []Message
	mu   sync.RWMutex
}

// NewChatHistory creates a history seeded with msgs.
func NewChatHistory(msgs ...Message) *ChatHistory {
	h := &ChatHistory{msgs: make([]Message, 0, len(msgs))}
	for _, m := range msgs {
		h.msgs = append(h.msgs, m.Clone())
	}
	return h
}

// Append adds messages to the end of the history in the given order.
func (h *ChatHistory) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		h.msgs = append(h.msgs, m.Clone())
	}
}

// Messages returns a defensive copy of all messages.
func (h *ChatHistory) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// Last returns the most recent message and whether one exists.
func (h *ChatHistory) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1].Clone(), true
}

// Clone returns a deep copy of the history safe for independent mutation.
func (h *ChatHistory) Clone() *ChatHistory {
	return NewChatHistory(h.Messages()...)
}
