package retrieval

import (
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/perbu/memesearch/pkg/memesearch"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyIndexed = "indexed"
	StrategyLinear  = "linear"
)

// Strategy is a backing search over a fixed document set.
type Strategy interface {
	Search(query []float32, k int) ([]*schema.Document, error)
	Len() int
	Name() string
}

// NewStrategy selects a strategy by name over the documents of idx.
func NewStrategy(name string, idx *memesearch.Index) (Strategy, error) {
	switch name {
	case StrategyIndexed, "":
		return &IndexedSearch{Index: idx}, nil
	case StrategyLinear:
		return &LinearScan{Documents: idx.Documents()}, nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q", name)
	}
}

// IndexedSearch delegates to a built Index (Euclidean distance, ascending).
type IndexedSearch struct {
	Index *memesearch.Index
}

// Search returns the k documents nearest to query, closest first.
func (s *IndexedSearch) Search(query []float32, k int) ([]*schema.Document, error) {
	hits, err := s.Index.Search(query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]*schema.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Document
	}
	return docs, nil
}

// Len returns the number of indexed documents.
func (s *IndexedSearch) Len() int { return s.Index.Len() }

// Name returns StrategyIndexed.
func (s *IndexedSearch) Name() string { return StrategyIndexed }

// LinearScan compares the query against every document's stored embedding
// by cosine similarity, highest first. It needs no prebuilt index.
type LinearScan struct {
	Documents []*schema.Document
}

// Search scores every document against query and returns the k most
// similar. Equal scores keep document order.
func (s *LinearScan) Search(query []float32, k int) ([]*schema.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	type scored struct {
		doc   *schema.Document
		score float32
	}

	results := make([]scored, 0, len(s.Documents))
	for _, doc := range s.Documents {
		vec := memesearch.Embedding(doc)
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: document %q has %d dims, query has %d",
				memesearch.ErrDimensionMismatch, doc.ID, len(vec), len(query))
		}
		results = append(results, scored{doc: doc, score: memesearch.CosineSimilarity(query, vec)})
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if k < len(results) {
		results = results[:k]
	}

	docs := make([]*schema.Document, len(results))
	for i, r := range results {
		docs[i] = r.doc
	}
	return docs, nil
}

// Len returns the number of scanned documents.
func (s *LinearScan) Len() int { return len(s.Documents) }

// Name returns StrategyLinear.
func (s *LinearScan) Name() string { return StrategyLinear }
