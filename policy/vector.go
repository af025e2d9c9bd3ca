package policy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// DefaultBatchSize is the number of chunks embedded per Embedder call.
const DefaultBatchSize = 64

// Embedder turns text into vectors. Implementations return one vector per
// input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndexOptions configure a VectorIndex.
type VectorIndexOptions struct {
	ChunkSize int
	BatchSize int
}

type vectorChunk struct {
	Chunk
	vector []float32
}

// VectorIndex ranks chunks by cosine similarity between their embedding and
// the query embedding.
//
// Concurrency: protected by RWMutex. Embedding runs outside the lock.
type VectorIndex struct {
	embedder Embedder
	opts     VectorIndexOptions

	mu     sync.RWMutex
	chunks []vectorChunk
}

// NewVectorIndex creates an empty index backed by e.
func NewVectorIndex(e Embedder, optFns ...func(o *VectorIndexOptions)) *VectorIndex {
	opts := VectorIndexOptions{
		ChunkSize: DefaultChunkSize,
		BatchSize: DefaultBatchSize,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &VectorIndex{embedder: e, opts: opts}
}

// AddDocument implements DocumentIndex. Nothing is indexed unless every
// chunk of the document was embedded.
func (x *VectorIndex) AddDocument(ctx context.Context, source, content string, metadata map[string]any) (int, error) {
	chunks := newChunks(source, content, metadata, x.opts.ChunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += x.opts.BatchSize {
		end := min(start+x.opts.BatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", source, err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", source, len(batch), len(texts))
		}

		vectors = append(vectors, batch...)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for i, c := range chunks {
		x.chunks = append(x.chunks, vectorChunk{Chunk: c, vector: vectors[i]})
	}

	return len(chunks), nil
}

// LoadDir indexes every .md and .txt file below dir. It returns the number
// of files indexed.
func (x *VectorIndex) LoadDir(ctx context.Context, dir string) (int, error) {
	return loadDir(ctx, dir, x.AddDocument)
}

// Len returns the number of indexed chunks.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Search implements Index. Chunks with a non-positive similarity are omitted.
func (x *VectorIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embed query: expected exactly one vector")
	}

	q := vecs[0]

	x.mu.RLock()
	results := make([]SearchResult, 0)
	for _, c := range x.chunks {
		score := CosineSimilarity(q, c.vector)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Chunk: c.Chunk, Score: min(score, 1)})
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
