package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatHistory_AppendPreservesOrder(t *testing.T) {
	h := NewChatHistory(NewUserMessage("hi"))
	h.Append(NewModelMessage("", ToolCall{ID: "c1", Name: "lookup"}), NewToolMessage("lookup", "c1", "ok"))

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleModel, msgs[1].Role)
	assert.Equal(t, RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, 3, h.Len())

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "ok", last.Content)
}

func TestChatHistory_MessagesIsDefensiveCopy(t *testing.T) {
	h := NewChatHistory()
	h.Append(NewModelMessage("", ToolCall{ID: "c1", Name: "t", Arguments: map[string]any{"q": "x"}}))

	msgs := h.Messages()
	msgs[0].Content = "changed"
	msgs[0].ToolCalls[0].Arguments["q"] = "mutated"

	again := h.Messages()
	assert.Equal(t, "", again[0].Content)
	assert.Equal(t, "x", again[0].ToolCalls[0].Arguments["q"])
}

func TestChatHistory_CloneDiverges(t *testing.T) {
	h := NewChatHistory(NewUserMessage("a"))
	c := h.Clone()
	c.Append(NewUserMessage("b"))

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 2, c.Len())
}

func TestChatHistory_LastOnEmpty(t *testing.T) {
	_, ok := NewChatHistory().Last()
	assert.False(t, ok)
}

func TestChatHistory_ConcurrentReads(t *testing.T) {
	h := NewChatHistory(NewUserMessage("a"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Messages()
			_ = h.Len()
		}()
	}
	h.Append(NewUserMessage("b"))
	wg.Wait()

	assert.Equal(t, 2, h.Len())
}
