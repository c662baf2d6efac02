package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/agent"
	"github.com/warisan-digital/arkib/internal/embed"
	"github.com/warisan-digital/arkib/internal/intent"
	"github.com/warisan-digital/arkib/internal/search"
	"github.com/warisan-digital/arkib/internal/store"
	anthropicpkg "github.com/warisan-digital/arkib/pkg/anthropic"
)

// agentEnv holds the initialized store, embedder, and agent needed by
// the serve/search commands.
type agentEnv struct {
	Store    store.Store
	Cache    *embed.Cache
	Embedder *embed.OpenAIEmbedder
	Agent    *agent.Agent
}

// Close releases resources held by the agent environment.
func (ae *agentEnv) Close() {
	if ae.Cache != nil {
		_ = ae.Cache.Close()
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initAgent sets up the store, embedding client, oracle clients, and the
// agent. Callers should defer env.Close().
func initAgent(ctx context.Context) (*agentEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (ARKIB_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cache, embedder, err := initEmbedder()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	oracle := anthropicpkg.NewClient(cfg.Anthropic.Key)
	classifier := intent.NewClassifier(oracle, cfg.Anthropic.Model)
	planner := agent.NewOraclePlanner(oracle, cfg.Anthropic.Model)
	searcher := search.NewSearcher(embedder, st)

	a := agent.New(classifier, planner, searcher, st, agent.Config{
		MatchThreshold: cfg.Search.MatchThreshold,
		MatchCount:     cfg.Search.MatchCount,
		MaxAttempts:    cfg.Search.MaxAttempts,
		MinSimilarity:  cfg.Search.MinSimilarity,
	})

	zap.L().Info("agent initialized",
		zap.String("oracle_model", cfg.Anthropic.Model),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		zap.Float64("match_threshold", cfg.Search.MatchThreshold),
		zap.Int("max_attempts", cfg.Search.MaxAttempts),
	)

	return &agentEnv{
		Store:    st,
		Cache:    cache,
		Embedder: embedder,
		Agent:    a,
	}, nil
}

// initEmbedder builds the OpenAI embedding client with its rate limiter
// and, when configured, the local SQLite embedding cache. The cache is
// best-effort; a miss just costs an API call.
func initEmbedder() (*embed.Cache, *embed.OpenAIEmbedder, error) {
	if cfg.OpenAI.Key == "" {
		return nil, nil, eris.New("openai API key is required (ARKIB_OPENAI_KEY)")
	}

	var cache *embed.Cache
	if cfg.OpenAI.CachePath != "" {
		ttl := time.Duration(cfg.OpenAI.CacheTTLHours) * time.Hour
		c, err := embed.OpenCache(cfg.OpenAI.CachePath, ttl)
		if err != nil {
			zap.L().Warn("embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			cache = c
		}
	}

	opts := []embed.Option{
		embed.WithRateLimit(cfg.OpenAI.RateLimitRPS, int(cfg.OpenAI.RateLimitRPS)*2),
	}
	if cache != nil {
		opts = append(opts, embed.WithCache(cache))
	}

	embedder, err := embed.NewOpenAIEmbedder(cfg.OpenAI.Key, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Dimension, opts...)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, nil, eris.Wrap(err, "init embedder")
	}

	return cache, embedder, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (ARKIB_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}
