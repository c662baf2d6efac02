// Package search implements the semantic search tool: multi-variant
// vector search with result scoring and cross-variant aggregation.
package search

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warisan-digital/arkib/internal/model"
)

// Embedder converts query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex runs a vector similarity query against the archive table.
type VectorIndex interface {
	MatchArchives(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.SearchResult, error)
}

const (
	// DefaultMatchThreshold is the per-call backend similarity floor. It is
	// tuned independently from the refinement acceptance floor.
	DefaultMatchThreshold = 0.3

	// DefaultMatchCount caps results per query variant.
	DefaultMatchCount = 5

	maxMatchCount = 20

	// variantConcurrency bounds how many variants embed and query at once
	// within a single search call.
	variantConcurrency = 4
)

// Searcher executes semantic searches over the archive index.
type Searcher struct {
	embedder Embedder
	index    VectorIndex
}

// NewSearcher creates a Searcher over the given embedder and index.
func NewSearcher(embedder Embedder, index VectorIndex) *Searcher {
	return &Searcher{embedder: embedder, index: index}
}

// Search embeds each query variant, runs a vector similarity query per
// variant, and merges the per-variant results into one deduplicated,
// similarity-ranked list. A variant that fails to embed or query is
// logged and skipped; the call only errors when every variant failed.
// Threshold is clamped to [0,1] and count to [1,20].
func (s *Searcher) Search(ctx context.Context, variants []string, matchThreshold float64, matchCount int) ([]model.SearchResult, error) {
	if len(variants) == 0 {
		return nil, eris.New("search: no query variants")
	}
	matchThreshold = clamp01(matchThreshold)
	if matchCount < 1 {
		matchCount = DefaultMatchCount
	}
	if matchCount > maxMatchCount {
		matchCount = maxMatchCount
	}

	perVariant := make([]VariantResults, len(variants))
	failures := make([]error, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(variantConcurrency)
	for i, query := range variants {
		g.Go(func() error {
			results, err := s.searchOne(gctx, query, matchThreshold, matchCount)
			if err != nil {
				// Partial failure: record and let the other variants proceed.
				failures[i] = err
				zap.L().Warn("search: query variant failed",
					zap.String("query", query),
					zap.Error(err),
				)
				return nil
			}
			perVariant[i] = VariantResults{Query: query, Results: results}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(variants) {
		return nil, eris.Wrapf(failures[0], "search: all %d query variants failed", len(variants))
	}

	merged := Merge(perVariant)
	zap.L().Info("search complete",
		zap.Int("variants", len(variants)),
		zap.Int("failed_variants", failed),
		zap.Int("unique_archives", len(merged)),
		zap.Float64("top_similarity", MaxSimilarity(merged)),
	)
	return merged, nil
}

func (s *Searcher) searchOne(ctx context.Context, query string, threshold float64, count int) ([]model.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "search: embed query")
	}
	results, err := s.index.MatchArchives(ctx, vec, threshold, count)
	if err != nil {
		return nil, eris.Wrap(err, "search: match archives")
	}
	return results, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
