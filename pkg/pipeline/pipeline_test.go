package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/memesearch/pkg/memesearch"
	"github.com/perbu/memesearch/pkg/ranking"
	"github.com/perbu/memesearch/pkg/retrieval"
)

type fixedEmbedder map[string][]float32

func (f fixedEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if v, ok := f[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type mockRanker struct {
	response   string
	err        error
	query      string
	candidates []*schema.Document
	countHint  int
}

func (m *mockRanker) Rank(_ context.Context, query string, candidates []*schema.Document, countHint int) (string, error) {
	m.query = query
	m.candidates = candidates
	m.countHint = countHint
	return m.response, m.err
}

func newSearcher(t *testing.T, docs []*schema.Document, r ranking.Ranker) (*Searcher, *bytes.Buffer) {
	t.Helper()
	idx, err := memesearch.Build(docs, 3, "test")
	require.NoError(t, err)

	emb := fixedEmbedder{"cats": {1, 0, 0}}
	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	return &Searcher{
		Retriever:  retrieval.New(emb, &retrieval.IndexedSearch{Index: idx}, 10),
		Ranker:     r,
		BaseFolder: "memes",
		Out:        &out,
		Logger:     logger,
		Quiet:      true,
	}, &out
}

func threeDocs() []*schema.Document {
	return []*schema.Document{
		memesearch.NewDocument("dog", "Meme image: dog.png", "memes/dog.png", []float32{0, 1, 0}),
		memesearch.NewDocument("cat", "Meme image: cat.png", "memes/cat.png", []float32{0.9, 0.1, 0}),
		memesearch.NewDocument("car", "Meme image: car.png", "memes/car.png", []float32{0, 0, 1}),
	}
}

func TestSearch_EndToEnd(t *testing.T) {
	r := &mockRanker{response: "Sure!\n[{\"image_path\":\"cat.png\",\"score\":9,\"summary\":\"A cat\"}]"}
	s, out := newSearcher(t, threeDocs(), r)

	got := s.Search(context.Background(), "cats")
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join("memes", "cat.png"), got[0].ImagePath)

	assert.Equal(t, "cats", r.query)
	require.Len(t, r.candidates, 3)
	assert.Equal(t, "cat", r.candidates[0].ID)
	assert.Equal(t, len(r.candidates), r.countHint)

	assert.Contains(t, out.String(), "Sending request to AI model...\n")
	assert.Contains(t, out.String(), "Response received! Processing results...\n")
}

func TestSearch_EmptyIndex(t *testing.T) {
	r := &mockRanker{}
	s, out := newSearcher(t, nil, r)

	got := s.Search(context.Background(), "cats")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Nil(t, r.candidates, "ranker must not be called")
	assert.Contains(t, out.String(), "index is empty")
}

func TestSearch_RankingFailureDegrades(t *testing.T) {
	r := &mockRanker{err: errors.New("503 from upstream")}
	s, out := newSearcher(t, threeDocs(), r)

	got := s.Search(context.Background(), "cats")
	assert.Empty(t, got)
	assert.Contains(t, out.String(), "503 from upstream")
}

func TestSearch_UnparseableResponseDegrades(t *testing.T) {
	r := &mockRanker{response: "I'm sorry, I can't help with that."}
	s, out := newSearcher(t, threeDocs(), r)

	got := s.Search(context.Background(), "cats")
	assert.Empty(t, got)
	assert.Contains(t, out.String(), "no JSON array found")
}

func TestSearch_SpinnerOutputIsCleared(t *testing.T) {
	r := &mockRanker{response: `[]`}
	s, out := newSearcher(t, threeDocs(), r)
	s.Quiet = false

	got := s.Search(context.Background(), "cats")
	assert.Empty(t, got)
	assert.Contains(t, out.String(), "Waiting for response")
	assert.True(t, strings.HasSuffix(out.String(), "Response received! Processing results...\n"))
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, nil)
	assert.Equal(t, "No memes found matching the query.\n", buf.String())

	buf.Reset()
	Print(&buf, []ranking.RankedCandidate{
		{ImagePath: "memes/a.jpg", Score: 8, Summary: "first"},
		{ImagePath: "memes/b.jpg", Score: 3, Summary: "second"},
	})
	assert.Equal(t, "\nTop Relevant Memes:\n"+
		"1. Image Path: memes/a.jpg\n   Score: 8/10\n   Summary: first\n\n"+
		"2. Image Path: memes/b.jpg\n   Score: 3/10\n   Summary: second\n\n", buf.String())
}
