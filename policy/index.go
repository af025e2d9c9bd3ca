package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultChunkSize is the maximum chunk length in bytes used by NewInMemoryIndex.
const DefaultChunkSize = 800

// Chunk is one searchable passage of a policy document.
type Chunk struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]any
}

// SearchResult is a chunk with its relevance score in [0,1].
type SearchResult struct {
	Chunk
	Score float64
}

// Index answers free-text questions over policy documents.
type Index interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// DocumentIndex is an Index that can be filled from documents.
type DocumentIndex interface {
	Index
	AddDocument(ctx context.Context, source, content string, metadata map[string]any) (int, error)
	LoadDir(ctx context.Context, dir string) (int, error)
	Len() int
}

type indexedChunk struct {
	Chunk
	terms map[string]int
}

// InMemoryIndex is a process-local Index. Documents are split into paragraph
// chunks and ranked by keyword overlap with the query.
//
// Concurrency: protected by RWMutex.
// Search: linear scan. A chunk's score is the share of distinct query terms
// it contains; term frequency breaks ties. It needs no network and is the
// fallback when no Embedder is configured; VectorIndex ranks semantically.
type InMemoryIndex struct {
	mu        sync.RWMutex
	chunks    []indexedChunk
	chunkSize int
}

// NewInMemoryIndex creates an empty index. chunkSize <= 0 selects DefaultChunkSize.
func NewInMemoryIndex(chunkSize int) *InMemoryIndex {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &InMemoryIndex{chunkSize: chunkSize}
}

// Add splits content into chunks and indexes them under source. It returns
// the number of chunks added.
func (x *InMemoryIndex) Add(source, content string, metadata map[string]any) int {
	chunks := newChunks(source, content, metadata, x.chunkSize)

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, c := range chunks {
		x.chunks = append(x.chunks, indexedChunk{Chunk: c, terms: termCounts(c.Content)})
	}

	return len(chunks)
}

// AddDocument implements DocumentIndex.
func (x *InMemoryIndex) AddDocument(ctx context.Context, source, content string, metadata map[string]any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return x.Add(source, content, metadata), nil
}

// LoadDir indexes every .md and .txt file below dir. It returns the number
// of files indexed.
func (x *InMemoryIndex) LoadDir(ctx context.Context, dir string) (int, error) {
	return loadDir(ctx, dir, x.AddDocument)
}

// Len returns the number of indexed chunks.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Search implements Index. Chunks sharing no term with query are omitted.
func (x *InMemoryIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := termCounts(query)
	if len(queryTerms) == 0 {
		return []SearchResult{}, nil
	}

	type scored struct {
		res  SearchResult
		hits int
	}

	x.mu.RLock()
	matches := make([]scored, 0)
	for _, c := range x.chunks {
		distinct, hits := 0, 0
		for term := range queryTerms {
			if n := c.terms[term]; n > 0 {
				distinct++
				hits += n
			}
		}
		if distinct == 0 {
			continue
		}
		matches = append(matches, scored{
			res:  SearchResult{Chunk: c.Chunk, Score: float64(distinct) / float64(len(queryTerms))},
			hits: hits,
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].res.Score != matches[j].res.Score {
			return matches[i].res.Score > matches[j].res.Score
		}
		return matches[i].hits > matches[j].hits
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = m.res
	}

	return out, nil
}

// newChunks splits content into chunks with ids of the form source#i. Each
// chunk gets a copy of metadata plus its position under "chunk".
func newChunks(source, content string, metadata map[string]any, size int) []Chunk {
	parts := splitParagraphs(content, size)
	chunks := make([]Chunk, len(parts))

	for i, p := range parts {
		md := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunk"] = i

		chunks[i] = Chunk{
			ID:       fmt.Sprintf("%s#%d", source, i),
			Source:   source,
			Content:  p,
			Metadata: md,
		}
	}

	return chunks
}

// termCounts folds case and counts the words of text. A Caser is stateful,
// so each call gets its own.
func termCounts(text string) map[string]int {
	counts := map[string]int{}

	words := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		counts[w]++
	}

	return counts
}

// splitParagraphs splits on blank lines and packs consecutive paragraphs into
// chunks of at most size bytes. A single paragraph longer than size is split
// on word boundaries.
func splitParagraphs(content string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > size {
			flush()
			chunks = append(chunks, splitWords(para, size)...)
			continue
		}

		if current.Len() > 0 && current.Len()+2+len(para) > size {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	flush()

	return chunks
}

func splitWords(text string, size int) []string {
	var (
		out     []string
		current strings.Builder
	)

	for _, w := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+1+len(w) > size {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}

	if current.Len() > 0 {
		out = append(out, current.String())
	}

	return out
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"do": true, "does": true, "for": true, "from": true, "how": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "what": true, "whats": true, "when": true,
	"which": true, "with": true, "my": true, "me": true, "i": true, "can": true, "this": true, "that": true,
}
