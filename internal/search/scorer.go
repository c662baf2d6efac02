package search

import "github.com/warisan-digital/arkib/internal/model"

// Acceptable reports whether a result set is good enough to hand back to
// the caller: non-empty, with at least one result scoring at or above
// threshold. Missing similarity scores count as 0. Pure function; the
// caller is responsible for clamping threshold to [0,1].
func Acceptable(results []model.SearchResult, threshold float64) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.SimilarityOrZero() >= threshold {
			return true
		}
	}
	return false
}

// MaxSimilarity returns the highest similarity in the set, or 0 for an
// empty set.
func MaxSimilarity(results []model.SearchResult) float64 {
	max := 0.0
	for _, r := range results {
		if s := r.SimilarityOrZero(); s > max {
			max = s
		}
	}
	return max
}
