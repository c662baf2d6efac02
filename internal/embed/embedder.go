// Package embed generates query and document embeddings via the OpenAI
// embeddings API, with local caching and rate limiting.
package embed

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warisan-digital/arkib/internal/resilience"
)

// Embedder converts text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dim     int
	limiter *rate.Limiter
	cache   *Cache
	retry   resilience.RetryConfig
}

// Option configures an OpenAIEmbedder.
type Option func(*OpenAIEmbedder)

// WithCache attaches a local embedding cache.
func WithCache(c *Cache) Option {
	return func(e *OpenAIEmbedder) { e.cache = c }
}

// WithRateLimit caps embedding API calls per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *OpenAIEmbedder) { e.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewOpenAIEmbedder creates an embedder for the given model and dimension.
func NewOpenAIEmbedder(apiKey, model string, dimension int, opts ...Option) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, eris.New("embed: api key not set")
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("openai", "embed")

	e := &OpenAIEmbedder{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		dim:     dimension,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		retry:   retryCfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dimension returns the embedding vector dimension.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed returns the embedding vector for text, consulting the local cache
// first when one is attached.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(ctx, e.model, text); ok {
			zap.L().Debug("embed: cache hit", zap.Int("dim", len(vec)))
			return vec, nil
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "embed: rate limiter")
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dim > 0 {
		params.Dimensions = openai.Int(int64(e.dim))
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, params)
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("embed: empty response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, e.model, text, vec); err != nil {
			// Cache writes are best effort.
			zap.L().Warn("embed: cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}
