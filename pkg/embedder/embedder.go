package embedder

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrUnreadableMedia is returned when an image cannot be read or decoded.
	// Callers building a corpus skip the file and continue.
	ErrUnreadableMedia = errors.New("unreadable media")

	// ErrProviderUnavailable is returned by constructors when the underlying
	// model cannot be reached or loaded. It is fatal at startup.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// Embedder maps images and texts into a shared vector space.
// All vectors returned by one instance have length Dimension().
type Embedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
