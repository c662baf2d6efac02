// Package model defines the core domain types shared across the archive
// search backend.
package model

import "time"

// Archive is a catalogued heritage item with descriptive metadata and
// references to its stored files.
type Archive struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	MediaTypes   []string  `json:"media_types"`
	Tags         []string  `json:"tags,omitempty"`
	Dates        []string  `json:"dates,omitempty"`
	StoragePaths []string  `json:"storage_paths,omitempty"`
	FileURIs     []string  `json:"file_uris,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// SearchResult is one archive candidate returned by a single semantic
// search invocation. Similarity is nil when the backend did not report a
// score; consumers treat that as 0.
type SearchResult struct {
	Archive
	Similarity *float64 `json:"similarity,omitempty"`

	// Embedding is the raw vector attached by the search backend. It is
	// internal-only and stripped before results leave the search layer.
	Embedding []float32 `json:"-"`

	// MatchedVariants counts how many query variants of one search call
	// produced this archive. Informational, never affects ranking.
	MatchedVariants int `json:"matched_variants,omitempty"`
}

// SimilarityOrZero returns the similarity score, treating a missing score
// as 0.
func (r SearchResult) SimilarityOrZero() float64 {
	if r.Similarity == nil {
		return 0
	}
	return *r.Similarity
}

// Float64Ptr returns a pointer to v. Convenience for building results.
func Float64Ptr(v float64) *float64 {
	return &v
}
