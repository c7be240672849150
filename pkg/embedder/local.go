package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// LocalEmbedder is an offline, deterministic embedder. Images become a
// quantized colour histogram and texts become hashed character trigrams.
// The two spaces are not aligned, so it is only useful for development,
// tests and smoke-testing the pipeline without network access.
type LocalEmbedder struct {
	dim int
}

// NewLocalEmbedder creates a local embedder with the given dimension.
func NewLocalEmbedder(dimension int) (*LocalEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrProviderUnavailable, dimension)
	}
	return &LocalEmbedder{dim: dimension}, nil
}

// EmbedImage decodes the image and returns its colour histogram.
func (e *LocalEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	b := img.Bounds()
	// 4 levels per channel, 64 buckets folded into dim
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			bucket := int(r>>14)<<4 | int(g>>14)<<2 | int(bl>>14)
			vec[bucket%e.dim]++
		}
	}

	l2normalize(vec)
	return vec, nil
}

// EmbedText returns the hashed trigram vector of text.
func (e *LocalEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) == 0 {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	vec := make([]float32, e.dim)
	runes := []rune(" " + text + " ")
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	l2normalize(vec)
	return vec, nil
}

// EmbedTexts embeds each text in order.
func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *LocalEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *LocalEmbedder) ModelInfo() string {
	return fmt.Sprintf("local-histogram-v1-%d", e.dim)
}
