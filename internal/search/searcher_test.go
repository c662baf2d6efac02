package search

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warisan-digital/arkib/internal/model"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.failOn[text] {
		return nil, eris.New("embed failed")
	}
	// Vector content is irrelevant; the fake index keys on length.
	return []float32{float32(len(text))}, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	calls     int
	threshold float64
	count     int
	byLen     map[int][]model.SearchResult
	err       error
}

func (f *fakeIndex) MatchArchives(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.threshold = threshold
	f.count = count
	if f.err != nil {
		return nil, f.err
	}
	return f.byLen[int(embedding[0])], nil
}

func TestSearcher_MergesVariants(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{byLen: map[int][]model.SearchResult{
		len("wayang kulit"): {result("a", 0.6), result("b", 0.5)},
		len("shadow puppetry"): {result("a", 0.8)},
	}}
	s := NewSearcher(emb, idx)

	results, err := s.Search(context.Background(), []string{"wayang kulit", "shadow puppetry"}, 0.3, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 0.8, results[0].SimilarityOrZero())
	assert.Equal(t, 2, results[0].MatchedVariants)
}

func TestSearcher_NoVariants(t *testing.T) {
	s := NewSearcher(&fakeEmbedder{}, &fakeIndex{})
	_, err := s.Search(context.Background(), nil, 0.3, 5)
	assert.Error(t, err)
}

func TestSearcher_PartialVariantFailureIsTolerated(t *testing.T) {
	emb := &fakeEmbedder{failOn: map[string]bool{"bad": true}}
	idx := &fakeIndex{byLen: map[int][]model.SearchResult{
		len("good"): {result("a", 0.7)},
	}}
	s := NewSearcher(emb, idx)

	results, err := s.Search(context.Background(), []string{"good", "bad"}, 0.3, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSearcher_AllVariantsFailed(t *testing.T) {
	emb := &fakeEmbedder{failOn: map[string]bool{"x": true, "y": true}}
	s := NewSearcher(emb, &fakeIndex{})

	_, err := s.Search(context.Background(), []string{"x", "y"}, 0.3, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 query variants failed")
}

func TestSearcher_IndexErrorAllVariants(t *testing.T) {
	idx := &fakeIndex{err: eris.New("connection refused")}
	s := NewSearcher(&fakeEmbedder{}, idx)

	_, err := s.Search(context.Background(), []string{"only"}, 0.3, 5)
	assert.Error(t, err)
}

func TestSearcher_ClampsThresholdAndCount(t *testing.T) {
	idx := &fakeIndex{byLen: map[int][]model.SearchResult{}}
	s := NewSearcher(&fakeEmbedder{}, idx)

	_, err := s.Search(context.Background(), []string{"q"}, 1.7, 99)
	require.NoError(t, err)
	assert.Equal(t, 1.0, idx.threshold)
	assert.Equal(t, maxMatchCount, idx.count)

	_, err = s.Search(context.Background(), []string{"q"}, -0.2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, idx.threshold)
	assert.Equal(t, DefaultMatchCount, idx.count)
}
