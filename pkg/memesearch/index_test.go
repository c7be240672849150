package memesearch

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func doc(id string, vec ...float32) *schema.Document {
	return NewDocument(id, "Meme image: "+id+".png", "/memes/"+id+".png", vec)
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Document.ID
	}
	return out
}

func TestSearch_OrderedByDistance(t *testing.T) {
	idx, err := Build([]*schema.Document{
		doc("far", 10, 10),
		doc("near", 1, 0),
		doc("mid", 3, 3),
	}, 2, "test")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := ids(hits)
	want := []string{"near", "mid", "far"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("Distances not non-decreasing at %d: %v", i, hits)
		}
	}
}

func TestSearch_RandomVectorsNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var docs []*schema.Document
	for i := 0; i < 50; i++ {
		v := make([]float32, 8)
		for j := range v {
			v[j] = rng.Float32()
		}
		docs = append(docs, doc(fmt.Sprintf("d%02d", i), v...))
	}
	idx, err := Build(docs, 8, "test")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	query := make([]float32, 8)
	for j := range query {
		query[j] = rng.Float32()
	}
	hits, _ := idx.Search(query, 20)
	if len(hits) != 20 {
		t.Fatalf("Expected 20 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Fatalf("Distances not non-decreasing at %d", i)
		}
	}
}

func TestSearch_FewerThanK(t *testing.T) {
	idx, _ := Build([]*schema.Document{doc("a", 1, 0), doc("b", 0, 1)}, 2, "test")

	hits, err := idx.Search([]float32{1, 1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("Expected 2 hits, got %d", len(hits))
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := Build([]*schema.Document{
		doc("first", 1, 0),
		doc("second", 0, 1),
		doc("third", -1, 0),
	}, 2, "test")

	hits, _ := idx.Search([]float32{0, 0}, 3)
	got := ids(hits)
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected insertion order %v on ties, got %v", want, got)
		}
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx, _ := Build([]*schema.Document{doc("a", 1, 0)}, 2, "test")

	if _, err := idx.Search([]float32{1, 0, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := Build(nil, 3, "test")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hits, err := idx.Search([]float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 || idx.Len() != 0 {
		t.Errorf("Expected no hits from empty index, got %d", len(hits))
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name string
		docs []*schema.Document
	}{
		{"wrong dimension", []*schema.Document{doc("a", 1, 2, 3)}},
		{"missing embedding", []*schema.Document{NewDocument("a", "x", "/a.png", nil)}},
		{"duplicate id", []*schema.Document{doc("a", 1, 0), doc("a", 0, 1)}},
		{"empty id", []*schema.Document{doc("", 1, 0)}},
		{"nil document", []*schema.Document{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.docs, 2, "test"); err == nil {
				t.Error("Expected Build to fail")
			}
		})
	}
}

func TestMetadataAccessors(t *testing.T) {
	d := doc("cat", 0.5, 0.5)
	if ImagePath(d) != "/memes/cat.png" {
		t.Errorf("Unexpected image path %q", ImagePath(d))
	}
	if len(Embedding(d)) != 2 {
		t.Errorf("Expected 2-dim embedding, got %v", Embedding(d))
	}
	if ImagePath(nil) != "" || Embedding(nil) != nil {
		t.Error("Expected zero values for nil document")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	if same := CosineSimilarity(a, b); same != 1.0 {
		t.Errorf("same vectors should have score 1.0, got %f", same)
	}
	if diff := CosineSimilarity(a, c); diff != 0.0 {
		t.Errorf("orthogonal vectors should have score 0.0, got %f", diff)
	}
	if mismatch := CosineSimilarity(a, []float32{1}); mismatch != 0 {
		t.Errorf("mismatched lengths should score 0, got %f", mismatch)
	}
}
