package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warisan-digital/arkib/internal/model"
)

func result(id string, sim float64) model.SearchResult {
	return model.SearchResult{
		Archive:    model.Archive{ID: id, Title: "archive " + id},
		Similarity: model.Float64Ptr(sim),
	}
}

func TestAcceptable_EmptyNeverAcceptable(t *testing.T) {
	assert.False(t, Acceptable(nil, 0))
	assert.False(t, Acceptable([]model.SearchResult{}, 0))
}

func TestAcceptable_SingleResultAboveFloor(t *testing.T) {
	results := []model.SearchResult{
		result("a", 0.2),
		result("b", 0.9),
		result("c", 0.1),
	}
	assert.True(t, Acceptable(results, 0.4), "one strong result is enough")
}

func TestAcceptable_AllBelowFloor(t *testing.T) {
	results := []model.SearchResult{
		result("a", 0.39),
		result("b", 0.1),
	}
	assert.False(t, Acceptable(results, 0.4))
}

func TestAcceptable_ExactlyAtFloor(t *testing.T) {
	results := []model.SearchResult{result("a", 0.4)}
	assert.True(t, Acceptable(results, 0.4), "floor is inclusive")
}

func TestAcceptable_MissingSimilarityCountsAsZero(t *testing.T) {
	noScore := model.SearchResult{Archive: model.Archive{ID: "a"}}
	assert.False(t, Acceptable([]model.SearchResult{noScore}, 0.4))
	assert.True(t, Acceptable([]model.SearchResult{noScore}, 0), "zero floor accepts unscored results")
}

func TestMaxSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, MaxSimilarity(nil))
	assert.Equal(t, 0.7, MaxSimilarity([]model.SearchResult{
		result("a", 0.3),
		result("b", 0.7),
		result("c", 0.5),
	}))
}
