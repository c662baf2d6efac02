// Package refine implements the query-refinement control loop that wraps
// semantic search calls: it scores each attempt's results, tracks the best
// set seen so far, and decides whether to accept, ask for a refined query,
// or give up with a best-effort answer.
package refine

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/model"
	"github.com/warisan-digital/arkib/internal/search"
)

// Defaults for the refinement loop. The acceptance floor is deliberately
// independent from the search backend's per-call match threshold.
const (
	DefaultMaxAttempts   = 3
	DefaultMinSimilarity = 0.4
)

// SearchFunc issues one semantic search over the given query variants.
type SearchFunc func(ctx context.Context, variants []string) ([]model.SearchResult, error)

// State tracks refinement progress for one conversation thread. The zero
// value is ready to use. A State is owned by a single thread and must not
// be shared across threads.
type State struct {
	AttemptCount  int
	OriginalQuery string
	TriedQueries  []string
	BestResults   []model.SearchResult
}

// BeginTurn resets the per-turn loop fields while keeping the thread's
// query history. The attempt budget applies to a single user turn; tried
// queries accumulate for the life of the thread.
func (s *State) BeginTurn() {
	s.AttemptCount = 0
	s.BestResults = nil
}

// Decision is the outcome of one controller iteration.
type Decision int

const (
	// Accepted means the attempt's results met the quality floor and are
	// returned unchanged.
	Accepted Decision = iota
	// Retry means the results were too weak and the caller should supply a
	// refined query.
	Retry
	// Exhausted means the attempt budget is spent; the best results seen so
	// far (possibly none) are returned.
	Exhausted
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Request describes why a retry is needed, for the external query
// generation step.
type Request struct {
	FailedQuery  string   `json:"failed_query"`
	TriedQueries []string `json:"tried_queries"`
	Reason       string   `json:"reason"`
	ResultCount  int      `json:"result_count"`
}

// Outcome is the result of one Attempt call.
type Outcome struct {
	Decision Decision
	Results  []model.SearchResult
	Attempts int
	Message  string
	Request  *Request // set only when Decision == Retry
}

// Controller drives the refinement loop around a search tool.
type Controller struct {
	searchFn      SearchFunc
	maxAttempts   int
	minSimilarity float64
}

// NewController creates a Controller over the given search function.
// Non-positive maxAttempts falls back to the default; minSimilarity is
// clamped to [0,1].
func NewController(searchFn SearchFunc, maxAttempts int, minSimilarity float64) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if minSimilarity < 0 {
		minSimilarity = 0
	}
	if minSimilarity > 1 {
		minSimilarity = 1
	}
	return &Controller{
		searchFn:      searchFn,
		maxAttempts:   maxAttempts,
		minSimilarity: minSimilarity,
	}
}

// MaxAttempts returns the configured attempt budget.
func (c *Controller) MaxAttempts() int { return c.maxAttempts }

// Attempt runs one iteration of the refinement loop: it issues the search
// over the given variants (the plain query when variants is empty), scores
// the raw results, and updates state.
//
// A search error is surfaced immediately without consuming an attempt slot
// or touching state: no result quality was observed, so it is not a
// retry-worthy outcome for this loop.
func (c *Controller) Attempt(ctx context.Context, query string, variants []string, state *State) (*Outcome, error) {
	if state == nil {
		return nil, eris.New("refine: nil state")
	}
	if len(variants) == 0 {
		variants = []string{query}
	}

	results, err := c.searchFn(ctx, variants)
	if err != nil {
		return nil, eris.Wrap(err, "refine: search attempt")
	}

	// The search succeeded; commit this attempt to the state.
	state.AttemptCount++
	state.TriedQueries = append(state.TriedQueries, query)
	if state.OriginalQuery == "" {
		state.OriginalQuery = query
	}

	log := zap.L().With(
		zap.String("query", query),
		zap.Int("attempt", state.AttemptCount),
		zap.Int("max_attempts", c.maxAttempts),
	)

	if search.Acceptable(results, c.minSimilarity) {
		log.Info("refine: results accepted",
			zap.Int("results", len(results)),
			zap.Float64("top_similarity", search.MaxSimilarity(results)),
		)
		return &Outcome{
			Decision: Accepted,
			Results:  results,
			Attempts: state.AttemptCount,
		}, nil
	}

	// Track the strongest set seen so far. An empty set never displaces a
	// non-empty best.
	if len(results) > 0 && (len(state.BestResults) == 0 ||
		search.MaxSimilarity(results) > search.MaxSimilarity(state.BestResults)) {
		state.BestResults = results
	}

	if state.AttemptCount >= c.maxAttempts {
		if len(state.BestResults) > 0 {
			log.Info("refine: attempts exhausted, returning best effort",
				zap.Int("best_results", len(state.BestResults)),
			)
			return &Outcome{
				Decision: Exhausted,
				Results:  state.BestResults,
				Attempts: state.AttemptCount,
				Message: fmt.Sprintf("Found %d result(s) after %d attempts, none above the %.2f relevance floor.",
					len(state.BestResults), state.AttemptCount, c.minSimilarity),
			}, nil
		}
		log.Info("refine: attempts exhausted with no results")
		return &Outcome{
			Decision: Exhausted,
			Attempts: state.AttemptCount,
			Message:  fmt.Sprintf("No results found after %d attempts.", state.AttemptCount),
		}, nil
	}

	log.Info("refine: results below floor, requesting refinement",
		zap.Int("results", len(results)),
		zap.Float64("top_similarity", search.MaxSimilarity(results)),
	)
	tried := make([]string, len(state.TriedQueries))
	copy(tried, state.TriedQueries)
	return &Outcome{
		Decision: Retry,
		Attempts: state.AttemptCount,
		Request: &Request{
			FailedQuery:  query,
			TriedQueries: tried,
			Reason: fmt.Sprintf("similarity below %.2f across %d result(s)",
				c.minSimilarity, len(results)),
			ResultCount: len(results),
		},
	}, nil
}
