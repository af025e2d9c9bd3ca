package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/toolflow/core"
)

func rawCall(id, name, args string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: ToolCallFunction{Name: name, Arguments: args}}
}

// -------------------- ParseToolCalls Tests --------------------

func TestParseToolCalls(t *testing.T) {
	calls, err := ParseToolCalls([]ToolCall{
		rawCall("c1", "member_lookup", `{"name":"Jane Smith"}`),
		rawCall("c2", "policy_query", ""),
		rawCall("", "policy_query", "null"),
	})
	require.NoError(t, err)
	require.Len(t, calls, 3)

	assert.Equal(t, core.ToolCall{ID: "c1", Name: "member_lookup", Arguments: map[string]any{"name": "Jane Smith"}}, calls[0])
	assert.Equal(t, map[string]any{}, calls[1].Arguments)
	assert.NotEmpty(t, calls[2].ID)
	assert.Equal(t, map[string]any{}, calls[2].Arguments)
}

func TestParseToolCalls_Empty(t *testing.T) {
	calls, err := ParseToolCalls(nil)
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestParseToolCalls_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []ToolCall
	}{
		{"invalid json", []ToolCall{rawCall("c1", "t", `{"name":`)}},
		{"array arguments", []ToolCall{rawCall("c1", "t", `[1,2]`)}},
		{"missing name", []ToolCall{rawCall("c1", " ", `{}`)}},
		{"duplicate id", []ToolCall{rawCall("c1", "a", `{}`), rawCall("c1", "b", `{}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, err := ParseToolCalls(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedToolCall)
			assert.Nil(t, calls)
		})
	}
}

// -------------------- ScriptedModel Tests --------------------

func TestScriptedModel_ReplaysInOrder(t *testing.T) {
	m := NewScriptedModel().
		AddToolCalls(rawCall("c1", "lookup", `{}`)).
		AddText("done")

	history := []core.Message{core.NewUserMessage("hi")}

	resp, err := m.ChatWithTools(context.Background(), Request{History: history})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)

	history[0].Content = "mutated"

	resp, err = m.ChatWithTools(context.Background(), Request{History: history})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)

	resp, err = m.ChatWithTools(context.Background(), Request{})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "no response queued")

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "hi", reqs[0].History[0].Content)
	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, "scripted", m.Info().Provider)
}

func TestScriptedModel_FailOnAndFallback(t *testing.T) {
	boom := errors.New("provider down")
	m := NewScriptedModel().FailOn(0, boom).WithFallback("fallback")

	_, err := m.ChatWithTools(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)

	resp, err := m.ChatWithTools(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Content)
}

func TestScriptedModel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptedModel().ChatWithTools(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

// -------------------- Rate Limit Tests --------------------

func TestWithRateLimit(t *testing.T) {
	inner := NewScriptedModel().WithFallback("ok")

	assert.Same(t, inner, WithRateLimit(inner, nil))
	assert.Nil(t, NewRateLimiter(0, 1))

	limited := WithRateLimit(inner, rate.NewLimiter(rate.Every(time.Hour), 1))
	assert.Equal(t, inner.Info(), limited.Info())

	resp, err := limited.ChatWithTools(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	// bucket is empty; the wait must give up when the context expires
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limited.ChatWithTools(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls())
}
