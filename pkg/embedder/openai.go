package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultEmbeddingBaseURL = "https://api.jina.ai/v1"
	DefaultEmbeddingModel   = "jina-clip-v2"
)

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // any OpenAI-compatible /embeddings endpoint accepting image inputs
	Model   string
	// Dimension is requested from the backend. Zero means ask the backend once
	// at construction time.
	Dimension         int
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            logrus.FieldLogger
}

// OpenAIEmbedder embeds images and texts through an OpenAI-compatible
// multimodal embeddings endpoint (for example jina-clip).
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	dim     int
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// imageInput is the multimodal input element understood by CLIP-style
// OpenAI-compatible embedding endpoints.
type imageInput struct {
	Image string `json:"image"`
}

// NewOpenAIEmbedder creates a multimodal embedder. It fails with
// ErrProviderUnavailable when no key is configured or the backend cannot
// produce a probe embedding.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrProviderUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEmbeddingBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	e := &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		dim:     cfg.Dimension,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     cfg.Logger,
	}

	if e.dim == 0 {
		vecs, err := e.create(ctx, []string{"probe"})
		if err != nil {
			return nil, fmt.Errorf("%w: probing %s: %v", ErrProviderUnavailable, cfg.Model, err)
		}
		e.dim = len(vecs[0])
		e.log.WithFields(logrus.Fields{"model": cfg.Model, "dim": e.dim}).Debug("probed embedding dimension")
	}

	return e, nil
}

// EmbedImage uploads the image inline and returns its embedding.
func (e *OpenAIEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	vecs, err := e.create(ctx, []imageInput{{Image: img.DataURL()}})
	if err != nil {
		return nil, fmt.Errorf("embedding image %s: %w", img.Path, err)
	}
	return vecs[0], nil
}

// EmbedText generates an embedding for a single text
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, errors.New("cannot embed empty text")
	}
	vecs, err := e.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds all texts in one request.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if len(t) == 0 {
			return nil, fmt.Errorf("cannot embed empty text at position %d", i)
		}
	}
	return e.create(ctx, texts)
}

// Dimension returns the embedding dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-compatible-" + e.model
}

func (e *OpenAIEmbedder) create(ctx context.Context, input any) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      input,
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if e.dim > 0 && len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(d.Embedding), e.dim)
		}
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		// L2 normalize (important for cosine similarity)
		l2normalize(v)
		out[i] = v
	}
	return out, nil
}
