// Package policy indexes insurance policy documents and exposes them to the
// model as a question-answering tool.
//
// VectorIndex ranks chunks by embedding similarity. InMemoryIndex ranks by
// keyword overlap and needs no network.
//
// Example:
//
//	index := policy.NewVectorIndex(openai.NewEmbedder())
//	if _, err := index.LoadDir(ctx, "docs"); err != nil {
//	    return err
//	}
//
//	registry := tool.MustRegistry(policy.NewQueryTool(index, 3))
package policy
