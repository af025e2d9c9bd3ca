package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/tool"
)

const flexibleProtection = `# Flexible Protection Plan

Critical illness cover pays a lump sum on diagnosis of a covered condition.

Underwriting limits for critical illness: applicants aged 51-55 may be covered up to 500000 without medical evidence.

Claims must be notified within 30 days of diagnosis.`

const incomeProtection = `# Income Protection

Income protection replaces part of your income if you cannot work because of illness or injury.

The deferred period can be 4, 8, 13, 26 or 52 weeks.`

func TestSplitParagraphs(t *testing.T) {
	t.Run("packs paragraphs", func(t *testing.T) {
		chunks := splitParagraphs("one\n\ntwo\n\n\n\nthree", 100)
		assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, chunks)
	})

	t.Run("respects size", func(t *testing.T) {
		chunks := splitParagraphs("aaaa\n\nbbbb\n\ncccc", 10)
		assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, chunks)
	})

	t.Run("splits long paragraph on words", func(t *testing.T) {
		chunks := splitParagraphs(strings.Repeat("word ", 10), 12)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 12)
		}
		assert.Equal(t, 10, strings.Count(strings.Join(chunks, " "), "word"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, splitParagraphs("  \n\n  ", 10))
	})
}

func TestInMemoryIndex_Search(t *testing.T) {
	ctx := context.Background()
	index := NewInMemoryIndex(120)

	n := index.Add("fpp.md", flexibleProtection, map[string]any{"product": "fpp"})
	assert.Equal(t, 3, n)
	m := index.Add("ip.md", incomeProtection, nil)
	assert.Equal(t, n+m, index.Len())

	results, err := index.Search(ctx, "What's the critical illness underwriting limit for 51-55 olds?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)

	top := results[0]
	assert.Equal(t, "fpp.md", top.Source)
	assert.Contains(t, top.Content, "Underwriting limits")
	assert.Equal(t, "fpp", top.Metadata["product"])
	assert.Greater(t, top.Score, 0.0)
	assert.LessOrEqual(t, top.Score, 1.0)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	results, err = index.Search(ctx, "DEFERRED period", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ip.md", results[0].Source)

	results, err = index.Search(ctx, "zebra", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = index.Search(ctx, "the of and", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryIndex_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fpp.md"), []byte(flexibleProtection), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "ip.txt"), []byte(incomeProtection), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o600))

	index := NewInMemoryIndex(0)

	files, err := index.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, files)

	results, err := index.Search(context.Background(), "deferred weeks", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sub/ip.txt", results[0].Source)

	_, err = index.LoadDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestQueryTool(t *testing.T) {
	index := NewInMemoryIndex(0)
	index.Add("fpp.md", flexibleProtection, nil)

	registry := tool.MustRegistry(NewQueryTool(index, 2))

	invoke := func(args map[string]any) (any, error) {
		call := core.ToolCall{ID: core.NewID(), Name: ToolName, Arguments: args}
		rc := core.NewRunContext("", nil, 0, nil)
		return registry.Invoke(core.NewToolContext(context.Background(), rc, call), call)
	}

	result, err := invoke(map[string]any{"query": "how do I claim critical illness"})
	require.NoError(t, err)
	assert.Contains(t, result, "[1] fpp.md")
	assert.Contains(t, result, "30 days")

	result, err = invoke(map[string]any{"query": "pet insurance"})
	require.NoError(t, err)
	assert.Equal(t, "No relevant policy documents found.", result)

	_, err = invoke(map[string]any{})
	var invErr *core.ToolInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.CodeValidation, invErr.Code)
}
