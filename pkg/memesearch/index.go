package memesearch

import (
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"
)

// Index is an exact nearest-neighbour index over image documents.
//
// An Index is built once from a complete document set and never mutated
// afterwards, so it is safe for concurrent searches. Documents returned by
// Search are shared with the index and must be treated as read-only.
type Index struct {
	dim       int
	modelInfo string
	docs      []*schema.Document
	vectors   [][]float32 // vectors[i] ↔ docs[i]
}

// Build creates an index from documents carrying an embedding of length dim
// in their metadata. Insertion order is preserved and used to break ties.
func Build(docs []*schema.Document, dim int, modelInfo string) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}

	idx := &Index{
		dim:       dim,
		modelInfo: modelInfo,
		docs:      make([]*schema.Document, 0, len(docs)),
		vectors:   make([][]float32, 0, len(docs)),
	}

	seen := make(map[string]bool, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("document %d is nil", i)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d has no ID", i)
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("duplicate document ID %q", doc.ID)
		}
		seen[doc.ID] = true

		vec := Embedding(doc)
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: document %q has %d dims, index has %d", ErrDimensionMismatch, doc.ID, len(vec), dim)
		}
		idx.docs = append(idx.docs, doc)
		idx.vectors = append(idx.vectors, vec)
	}

	return idx, nil
}

// Search returns at most k documents ordered by ascending Euclidean distance
// to query. Equal distances keep insertion order. An index smaller than k
// returns all of its documents.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 || len(ix.docs) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(ix.docs))
	for i, doc := range ix.docs {
		hits[i] = Hit{Document: doc, Distance: L2Distance(query, ix.vectors[i])}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Dimension returns the vector length of every indexed document.
func (ix *Index) Dimension() int {
	return ix.dim
}

// ModelInfo identifies the embedding model the vectors came from.
func (ix *Index) ModelInfo() string {
	return ix.modelInfo
}

// Documents returns the indexed documents in insertion order.
func (ix *Index) Documents() []*schema.Document {
	out := make([]*schema.Document, len(ix.docs))
	copy(out, ix.docs)
	return out
}
