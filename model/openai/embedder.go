package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultEmbeddingModel is used when EmbedderOptions.Model is empty.
const DefaultEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small

// EmbedderOptions configure the OpenAI embedder.
type EmbedderOptions struct {
	Model string

	// Dimensions shortens the returned vectors when the model supports it.
	Dimensions int64

	APIKey  string
	BaseURL string
}

// Embedder turns text into vectors with the OpenAI embeddings API. It
// satisfies policy.Embedder.
type Embedder struct {
	client *openai.Client
	opts   EmbedderOptions
}

// NewEmbedder creates an embedder using the official client. Without an
// explicit APIKey the client reads OPENAI_API_KEY from the environment.
func NewEmbedder(optFns ...func(o *EmbedderOptions)) *Embedder {
	opts := EmbedderOptions{Model: DefaultEmbeddingModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(reqOpts...)

	return NewEmbedderFromClient(&client, func(o *EmbedderOptions) { *o = opts })
}

// NewEmbedderFromClient creates an embedder sharing an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *EmbedderOptions)) *Embedder {
	opts := EmbedderOptions{Model: DefaultEmbeddingModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == "" {
		opts.Model = DefaultEmbeddingModel
	}

	return &Embedder{client: client, opts: opts}
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          e.opts.Model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(e.opts.Dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", d.Index)
		}

		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		out[d.Index] = v
	}

	return out, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.opts.Model }
