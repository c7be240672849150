package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/credentials"
	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/ranking"
)

// localDimension is used by the local provider when no dimension is set.
const localDimension = 256

// NewEmbedder constructs the configured embedding provider. API keys are
// resolved through creds, which may prompt the user.
func (c Config) NewEmbedder(ctx context.Context, creds credentials.Provider, log logrus.FieldLogger) (embedder.Embedder, error) {
	switch c.Embedding.Provider {
	case ProviderLocal:
		dim := c.Embedding.Dimension
		if dim == 0 {
			dim = localDimension
		}
		emb, err := embedder.NewLocalEmbedder(dim)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case ProviderOpenAI:
		key, err := creds.GetOrPrompt(c.Embedding.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", embedder.ErrProviderUnavailable, err)
		}
		emb, err := embedder.NewOpenAIEmbedder(ctx, embedder.OpenAIConfig{
			APIKey:            key,
			BaseURL:           c.Embedding.BaseURL,
			Model:             c.Embedding.Model,
			Dimension:         c.Embedding.Dimension,
			RequestsPerSecond: c.Embedding.RequestsPerSecond,
			Timeout:           c.EmbeddingTimeout(),
			Logger:            log,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", embedder.ErrProviderUnavailable, c.Embedding.Provider)
	}
}

// NewRanker constructs the remote ranking client.
func (c Config) NewRanker(creds credentials.Provider, log logrus.FieldLogger) (*ranking.OpenAIRanker, error) {
	key, err := creds.GetOrPrompt(c.Ranking.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedder.ErrProviderUnavailable, err)
	}
	return ranking.NewOpenAIRanker(ranking.Config{
		APIKey:  key,
		BaseURL: c.Ranking.BaseURL,
		Model:   c.Ranking.Model,
		Timeout: c.RankingTimeout(),
		Logger:  log,
	})
}
