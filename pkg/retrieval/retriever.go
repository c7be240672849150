// Package retrieval narrows the meme collection down to the candidates
// nearest to a text query.
package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/perbu/memesearch/pkg/memesearch"
)

// DefaultTopK is the number of candidates handed to the ranking stage.
const DefaultTopK = 10

// TextEmbedder is the part of embedder.Embedder the retriever needs.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a query and searches a Strategy. It implements the
// eino retriever.Retriever interface; retriever.WithTopK overrides k.
type Retriever struct {
	embedder TextEmbedder
	strategy Strategy
	topK     int
}

var _ retriever.Retriever = (*Retriever)(nil)

// New creates a Retriever. topK <= 0 means DefaultTopK.
func New(emb TextEmbedder, strategy Strategy, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: emb,
		strategy: strategy,
		topK:     topK,
	}
}

// Retrieve returns at most k documents nearest to query, closest first.
// An empty strategy yields ErrEmptyIndex and no documents.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	k := r.topK
	co := retriever.GetCommonOptions(&retriever.Options{TopK: &k}, opts...)
	if co.TopK != nil && *co.TopK > 0 {
		k = *co.TopK
	}

	if r.strategy.Len() == 0 {
		return nil, memesearch.ErrEmptyIndex
	}

	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := r.strategy.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", r.strategy.Name(), err)
	}
	return docs, nil
}

// TopK returns the default candidate count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Strategy returns the backing strategy.
func (r *Retriever) Strategy() Strategy {
	return r.strategy
}
