package refine

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warisan-digital/arkib/internal/model"
)

func scored(id string, sim float64) model.SearchResult {
	return model.SearchResult{
		Archive:    model.Archive{ID: id},
		Similarity: model.Float64Ptr(sim),
	}
}

// scriptedSearch returns one canned response per call, in order.
type scriptedSearch struct {
	responses [][]model.SearchResult
	errs      []error
	calls     int
}

func (s *scriptedSearch) search(ctx context.Context, variants []string) ([]model.SearchResult, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		return nil, eris.New("unexpected extra search call")
	}
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func TestController_AcceptsFirstGoodAttempt(t *testing.T) {
	script := &scriptedSearch{responses: [][]model.SearchResult{
		{scored("a", 0.85), scored("b", 0.2)},
	}}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	out, err := c.Attempt(context.Background(), "songket weaving", nil, state)
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Decision)
	assert.Len(t, out.Results, 2, "accepted results are returned unfiltered")
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{"songket weaving"}, state.TriedQueries)
	assert.Equal(t, "songket weaving", state.OriginalQuery)
}

func TestController_RetryThenAccept(t *testing.T) {
	script := &scriptedSearch{responses: [][]model.SearchResult{
		{scored("a", 0.3)},
		{scored("b", 0.6)},
	}}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	out, err := c.Attempt(context.Background(), "old photos", nil, state)
	require.NoError(t, err)
	require.Equal(t, Retry, out.Decision)
	require.NotNil(t, out.Request)
	assert.Equal(t, "old photos", out.Request.FailedQuery)
	assert.Equal(t, []string{"old photos"}, out.Request.TriedQueries)
	assert.Equal(t, 1, out.Request.ResultCount)

	out, err = c.Attempt(context.Background(), "historical photographs", nil, state)
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Decision)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{"old photos", "historical photographs"}, state.TriedQueries)
}

func TestController_ExhaustedReturnsBestSeen(t *testing.T) {
	// Three weak attempts; the middle one is the strongest.
	script := &scriptedSearch{responses: [][]model.SearchResult{
		{scored("a", 0.15)},
		{scored("b", 0.35), scored("c", 0.2)},
		{scored("d", 0.25)},
	}}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	out, _ := c.Attempt(context.Background(), "q1", nil, state)
	require.Equal(t, Retry, out.Decision)
	out, _ = c.Attempt(context.Background(), "q2", nil, state)
	require.Equal(t, Retry, out.Decision)

	out, err := c.Attempt(context.Background(), "q3", nil, state)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, out.Decision)
	assert.Equal(t, 3, out.Attempts)
	require.Len(t, out.Results, 2, "best-effort set is the strongest attempt, not the last")
	assert.Equal(t, "b", out.Results[0].ID)
	assert.NotEmpty(t, out.Message)
}

func TestController_ExhaustedWithNothing(t *testing.T) {
	script := &scriptedSearch{responses: [][]model.SearchResult{{}, {}, {}}}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	var out *Outcome
	var err error
	for _, q := range []string{"q1", "q2", "q3"} {
		out, err = c.Attempt(context.Background(), q, nil, state)
		require.NoError(t, err)
	}

	assert.Equal(t, Exhausted, out.Decision)
	assert.Empty(t, out.Results)
	assert.Contains(t, out.Message, "No results found after 3 attempts")
}

func TestController_EmptyNeverDisplacesBest(t *testing.T) {
	script := &scriptedSearch{responses: [][]model.SearchResult{
		{scored("a", 0.3)},
		{},
		{},
	}}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := c.Attempt(context.Background(), q, nil, state)
		require.NoError(t, err)
	}

	require.Len(t, state.BestResults, 1)
	assert.Equal(t, "a", state.BestResults[0].ID)
}

func TestController_SearchErrorDoesNotConsumeAttempt(t *testing.T) {
	script := &scriptedSearch{
		responses: [][]model.SearchResult{nil, {scored("a", 0.9)}},
		errs:      []error{eris.New("backend down"), nil},
	}
	c := NewController(script.search, 3, 0.4)
	state := &State{}

	_, err := c.Attempt(context.Background(), "q", nil, state)
	require.Error(t, err)
	assert.Equal(t, 0, state.AttemptCount, "failed search leaves state untouched")
	assert.Empty(t, state.TriedQueries)

	out, err := c.Attempt(context.Background(), "q", nil, state)
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Decision)
	assert.Equal(t, 1, out.Attempts)
}

func TestController_AttemptBoundHolds(t *testing.T) {
	// However many retries the caller issues, Exhausted arrives exactly at
	// the configured budget.
	for _, max := range []int{1, 2, 3, 5} {
		responses := make([][]model.SearchResult, max)
		for i := range responses {
			responses[i] = []model.SearchResult{scored("x", 0.1)}
		}
		script := &scriptedSearch{responses: responses}
		c := NewController(script.search, max, 0.4)
		state := &State{}

		var out *Outcome
		for i := 0; i < max; i++ {
			var err error
			out, err = c.Attempt(context.Background(), "q", nil, state)
			require.NoError(t, err)
			if i < max-1 {
				require.Equal(t, Retry, out.Decision, "max=%d attempt=%d", max, i+1)
			}
		}
		assert.Equal(t, Exhausted, out.Decision, "max=%d", max)
		assert.Equal(t, max, out.Attempts)
	}
}

func TestController_ThresholdBoundary(t *testing.T) {
	script := &scriptedSearch{responses: [][]model.SearchResult{
		{scored("a", 0.4)},
	}}
	c := NewController(script.search, 3, 0.4)

	out, err := c.Attempt(context.Background(), "q", nil, &State{})
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Decision, "similarity exactly at the floor is accepted")
}

func TestController_DefaultsApplied(t *testing.T) {
	c := NewController(nil, 0, -1)
	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts())
	assert.Equal(t, 0.0, c.minSimilarity)

	c = NewController(nil, 0, 2.5)
	assert.Equal(t, 1.0, c.minSimilarity)
}

func TestController_NilState(t *testing.T) {
	c := NewController(func(ctx context.Context, v []string) ([]model.SearchResult, error) {
		return nil, nil
	}, 3, 0.4)
	_, err := c.Attempt(context.Background(), "q", nil, nil)
	assert.Error(t, err)
}

func TestState_BeginTurnKeepsHistory(t *testing.T) {
	state := &State{
		AttemptCount:  3,
		OriginalQuery: "first question",
		TriedQueries:  []string{"first question", "refined"},
		BestResults:   []model.SearchResult{scored("a", 0.3)},
	}

	state.BeginTurn()

	assert.Equal(t, 0, state.AttemptCount)
	assert.Nil(t, state.BestResults)
	assert.Equal(t, []string{"first question", "refined"}, state.TriedQueries)
	assert.Equal(t, "first question", state.OriginalQuery)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "exhausted", Exhausted.String())
}
