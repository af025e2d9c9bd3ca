package policy

import (
	"fmt"
	"strings"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/tool"
)

// ToolName is the name the query tool is registered under.
const ToolName = "policy_query"

const toolDescription = "Useful for answering semantic questions about insurance policies and procedures: " +
	"coverage, underwriting limits, exclusions and how to make a claim."

type queryArgs struct {
	Query string `json:"query" description:"Natural language question about insurance policies"`
}

// NewQueryTool exposes index as a tool returning at most limit passages.
func NewQueryTool(index Index, limit int) tool.Tool {
	if limit <= 0 {
		limit = 3
	}

	return tool.NewTypedTool(ToolName, toolDescription,
		func(tc *core.ToolContext, in queryArgs) (any, error) {
			results, err := index.Search(tc.Context(), in.Query, limit)
			if err != nil {
				return nil, err
			}

			tc.LogDebug("policy.query", "query", in.Query, "results", len(results))

			return formatResults(results), nil
		})
}

func formatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No relevant policy documents found."
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (score %.2f)\n%s", i+1, r.Source, r.Score, r.Content)
	}

	return b.String()
}
