// Package ranking asks a multimodal chat model to pick and score the most
// relevant memes among the retrieved candidates, and parses its answer.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/memesearch"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 120 * time.Second
)

// ErrRankingRequest wraps every failure of the remote ranking call.
var ErrRankingRequest = errors.New("ranking request failed")

// Ranker sends the query and candidate images to a reasoning model and
// returns its raw text answer. It does no parsing.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []*schema.Document, countHint int) (string, error)
}

// Config configures an OpenAIRanker.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// OpenAIRanker talks to any OpenAI-compatible chat completions endpoint that
// accepts image_url content parts.
type OpenAIRanker struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ Ranker = (*OpenAIRanker)(nil)

// NewOpenAIRanker creates a ranker. An empty API key is rejected.
func NewOpenAIRanker(cfg Config) (*OpenAIRanker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", embedder.ErrProviderUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{}

	return &OpenAIRanker{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}, nil
}

// BuildMessage assembles the single user message: the prompt, then for each
// candidate in order its filename label and the inlined image. Candidates
// whose image cannot be read are logged and left out; the prompt then
// counts only the attached images. It fails only when no image is readable.
func BuildMessage(query string, candidates []*schema.Document, countHint int, log logrus.FieldLogger) (openai.ChatCompletionMessage, int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	images := make([]openai.ChatMessagePart, 0, 2*len(candidates))
	var lastErr error
	for _, doc := range candidates {
		path := memesearch.ImagePath(doc)
		img, err := embedder.ReadImage(path)
		if err != nil {
			log.WithError(err).WithField("file", filepath.Base(path)).Warn("skipping unreadable candidate")
			lastErr = err
			continue
		}
		images = append(images,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: ImageLabel(filepath.Base(path)),
			},
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    img.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		)
	}

	attached := len(images) / 2
	if attached == 0 {
		if lastErr == nil {
			lastErr = errors.New("no candidates")
		}
		return openai.ChatCompletionMessage{}, 0, lastErr
	}
	if attached < len(candidates) {
		countHint = attached
	}

	parts := make([]openai.ChatMessagePart, 0, 1+len(images))
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: BuildPrompt(countHint, query),
	})
	parts = append(parts, images...)

	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}, attached, nil
}

// Rank performs one chat completion call bounded by the configured timeout.
func (r *OpenAIRanker) Rank(ctx context.Context, query string, candidates []*schema.Document, countHint int) (string, error) {
	msg, attached, err := BuildMessage(query, candidates, countHint, r.log)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRankingRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRankingRequest, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrRankingRequest)
	}

	r.log.WithFields(logrus.Fields{
		"model":      r.model,
		"candidates": attached,
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Debug("ranking response received")

	return resp.Choices[0].Message.Content, nil
}
