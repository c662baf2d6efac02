package search

import (
	"sort"

	"github.com/warisan-digital/arkib/internal/model"
)

// VariantResults holds the raw results one query variant produced.
type VariantResults struct {
	Query   string
	Results []model.SearchResult
}

// Merge combines the result lists of multiple query variants into one
// ranked list. Results are keyed by archive ID: when the same ID appears
// across variants, the instance with strictly higher similarity wins and
// ties keep the first-seen copy. The merged list is ordered by descending
// similarity with first-seen order breaking ties, each result carries the
// count of variants that matched it, and raw embedding vectors are
// stripped so they never leave the search layer.
func Merge(variants []VariantResults) []model.SearchResult {
	type entry struct {
		result model.SearchResult
		seen   int // first-seen insertion order, for stable tie-breaks
	}

	byID := make(map[string]*entry)
	matchedBy := make(map[string]int)
	order := 0

	for _, v := range variants {
		seenInVariant := make(map[string]bool)
		for _, r := range v.Results {
			if r.ID == "" {
				continue
			}
			if !seenInVariant[r.ID] {
				matchedBy[r.ID]++
				seenInVariant[r.ID] = true
			}
			existing, ok := byID[r.ID]
			if !ok {
				byID[r.ID] = &entry{result: r, seen: order}
				order++
				continue
			}
			if r.SimilarityOrZero() > existing.result.SimilarityOrZero() {
				// Keep the higher-scoring copy but preserve first-seen order.
				existing.result = r
			}
		}
	}

	entries := make([]*entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := entries[i].result.SimilarityOrZero(), entries[j].result.SimilarityOrZero()
		if si != sj {
			return si > sj
		}
		return entries[i].seen < entries[j].seen
	})

	merged := make([]model.SearchResult, 0, len(entries))
	for _, e := range entries {
		r := e.result
		r.Embedding = nil
		r.MatchedVariants = matchedBy[r.ID]
		merged = append(merged, r)
	}
	return merged
}
