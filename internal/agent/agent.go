// Package agent orchestrates one user query end to end: intent
// classification, the refinement-controlled search loop, metadata
// fallback browsing, and the ordered progress event stream.
package agent

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/intent"
	"github.com/warisan-digital/arkib/internal/model"
	"github.com/warisan-digital/arkib/internal/refine"
	"github.com/warisan-digital/arkib/internal/search"
	"github.com/warisan-digital/arkib/internal/store"
)

// Classifier labels a query with one of the four intents.
type Classifier interface {
	Classify(ctx context.Context, query string) (intent.Intent, error)
}

// SearchTool issues one multi-variant semantic search.
type SearchTool interface {
	Search(ctx context.Context, variants []string, matchThreshold float64, matchCount int) ([]model.SearchResult, error)
}

// Browser is the metadata fallback read path.
type Browser interface {
	Browse(ctx context.Context, filter store.BrowseFilter) ([]model.Archive, error)
}

// Config tunes the agent's search behavior. The backend match threshold
// and the refinement acceptance floor are deliberately independent knobs.
type Config struct {
	MatchThreshold float64
	MatchCount     int
	MaxAttempts    int
	MinSimilarity  float64
}

// Agent coordinates the full query pipeline. Construct one per process
// and share it across requests; per-thread refinement state is kept
// internally, keyed by conversation thread ID.
type Agent struct {
	classifier Classifier
	planner    Planner
	searcher   SearchTool
	browser    Browser
	controller *refine.Controller
	cfg        Config

	mu      sync.Mutex
	threads map[string]*thread
}

// thread serializes search turns for one conversation thread and owns its
// refinement state.
type thread struct {
	mu    sync.Mutex
	state refine.State
}

// New creates an Agent from its collaborators.
func New(classifier Classifier, planner Planner, searcher SearchTool, browser Browser, cfg Config) *Agent {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = search.DefaultMatchThreshold
	}
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = search.DefaultMatchCount
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = refine.DefaultMinSimilarity
	}

	a := &Agent{
		classifier: classifier,
		planner:    planner,
		searcher:   searcher,
		browser:    browser,
		cfg:        cfg,
		threads:    make(map[string]*thread),
	}
	a.controller = refine.NewController(
		func(ctx context.Context, variants []string) ([]model.SearchResult, error) {
			return searcher.Search(ctx, variants, cfg.MatchThreshold, cfg.MatchCount)
		},
		cfg.MaxAttempts,
		cfg.MinSimilarity,
	)
	return a
}

// Search runs a query to completion and returns the final response.
func (a *Agent) Search(ctx context.Context, query, threadID string) (*Response, error) {
	var final *Response
	var failure error
	for ev := range a.Stream(ctx, query, threadID) {
		switch ev.Type {
		case EventComplete:
			final = &Response{
				ResponseType: ev.ResponseType,
				Archives:     ev.Archives,
				Total:        ev.Total,
				Query:        query,
				Message:      ev.Message,
				Intent:       ev.Intent,
			}
		case EventError:
			failure = eventError{msg: ev.Message}
		}
	}
	if failure != nil {
		return nil, failure
	}
	if final == nil {
		// Stream ended without a terminal event: the context was cancelled.
		return nil, ctx.Err()
	}
	if final.Archives == nil {
		final.Archives = []model.SearchResult{}
	}
	return final, nil
}

type eventError struct{ msg string }

func (e eventError) Error() string { return e.msg }

// Stream runs a query and delivers progress events in production order on
// the returned channel. The channel closes after the terminal event, or
// early when ctx is cancelled; cancellation also stops any further search
// attempts.
func (a *Agent) Stream(ctx context.Context, query, threadID string) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		emit := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		a.run(ctx, query, threadID, emit)
	}()
	return ch
}

func (a *Agent) run(ctx context.Context, query, threadID string, emit func(Event) bool) {
	if !emit(Event{
		Type:      EventQueryReceived,
		Query:     query,
		ThreadID:  threadID,
		Timestamp: time.Now().UTC(),
	}) {
		return
	}

	cls, err := a.classifier.Classify(ctx, query)
	if err != nil {
		zap.L().Error("agent: classification failed",
			zap.String("query", query),
			zap.Error(err),
		)
		emit(Event{Type: EventError, Message: "intent classification failed", Query: query})
		return
	}

	// Hard boundary: non-search intents answer with canned text and never
	// touch the search backend or the metadata browser.
	if !cls.IsSearch() {
		msg := intent.CannedResponse(cls)
		if !emit(Event{Type: EventMessage, Message: msg}) {
			return
		}
		emit(Event{
			Type:         EventComplete,
			ResponseType: ResponseMessage,
			Message:      msg,
			Query:        query,
			Intent:       string(cls),
		})
		return
	}

	th := a.thread(threadID)
	th.mu.Lock()
	defer th.mu.Unlock()
	th.state.BeginTurn()

	a.searchLoop(ctx, query, string(cls), &th.state, emit)
}

// searchLoop drives the refinement controller until a terminal decision,
// then falls back to metadata browsing when nothing at all was found.
func (a *Agent) searchLoop(ctx context.Context, query, cls string, state *refine.State, emit func(Event) bool) {
	current := query
	for {
		if ctx.Err() != nil {
			return
		}
		if !emit(Event{Type: EventSearching, Query: current, Attempt: state.AttemptCount + 1}) {
			return
		}

		outcome, err := a.controller.Attempt(ctx, current, a.variants(ctx, current), state)
		if err != nil {
			zap.L().Error("agent: search attempt failed",
				zap.String("query", current),
				zap.Error(err),
			)
			emit(Event{Type: EventError, Message: "search backend failure", Query: query})
			return
		}

		switch outcome.Decision {
		case refine.Accepted:
			a.finishWithResults(query, cls, outcome.Results, "", emit)
			return

		case refine.Exhausted:
			if len(outcome.Results) > 0 {
				a.finishWithResults(query, cls, outcome.Results, outcome.Message, emit)
				return
			}
			a.fallback(ctx, query, cls, emit)
			return

		case refine.Retry:
			refined, err := a.planner.Refine(ctx, *outcome.Request)
			if err != nil {
				// Without a new query the loop cannot continue; settle for the
				// best seen so far.
				zap.L().Warn("agent: refinement generation failed",
					zap.String("query", current),
					zap.Error(err),
				)
				if len(state.BestResults) > 0 {
					a.finishWithResults(query, cls, state.BestResults, "Results below the relevance floor.", emit)
					return
				}
				a.fallback(ctx, query, cls, emit)
				return
			}
			if state.AlreadyTried(refined) {
				zap.L().Warn("agent: oracle repeated a tried query",
					zap.String("refined", refined),
				)
			}
			current = refined
		}
	}
}

// variants expands a query into search variations; planner failures fall
// back to searching the query itself.
func (a *Agent) variants(ctx context.Context, query string) []string {
	variants, err := a.planner.Variants(ctx, query)
	if err != nil || len(variants) == 0 {
		if err != nil {
			zap.L().Warn("agent: variant generation failed, using plain query",
				zap.String("query", query),
				zap.Error(err),
			)
		}
		return []string{query}
	}
	return variants
}

func (a *Agent) finishWithResults(query, cls string, results []model.SearchResult, note string, emit func(Event) bool) {
	if !emit(Event{Type: EventResults, Archives: results, Total: len(results)}) {
		return
	}
	emit(Event{
		Type:         EventComplete,
		ResponseType: ResponseResults,
		Archives:     results,
		Total:        len(results),
		Query:        query,
		Message:      note,
		Intent:       cls,
	})
}

// fallback browses archive metadata with keywords derived from the user
// query, the last resort before declaring no results.
func (a *Agent) fallback(ctx context.Context, query, cls string, emit func(Event) bool) {
	for _, kw := range fallbackKeywords(query) {
		if ctx.Err() != nil {
			return
		}
		for _, field := range []store.BrowseField{store.FilterTag, store.FilterTitle} {
			archives, err := a.browser.Browse(ctx, store.BrowseFilter{Field: field, Value: kw})
			if err != nil {
				zap.L().Warn("agent: fallback browse failed",
					zap.String("field", string(field)),
					zap.String("value", kw),
					zap.Error(err),
				)
				continue
			}
			if len(archives) == 0 {
				continue
			}
			zap.L().Info("agent: fallback browse matched",
				zap.String("field", string(field)),
				zap.String("value", kw),
				zap.Int("archives", len(archives)),
			)
			a.finishWithResults(query, cls, archivesToResults(archives),
				"Found via metadata browsing; semantic search had no relevant matches.", emit)
			return
		}
	}

	emit(Event{
		Type:         EventComplete,
		ResponseType: ResponseMessage,
		Message:      intent.NoResultsMessage,
		Query:        query,
		Intent:       cls,
	})
}

// fallbackStopwords are query words too generic to browse by.
var fallbackStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "any": true, "find": true,
	"for": true, "from": true, "in": true, "looking": true, "me": true,
	"of": true, "on": true, "show": true, "some": true, "the": true,
	"to": true, "with": true,
}

// fallbackKeywords extracts up to three browse keywords from a query,
// longest first.
func fallbackKeywords(query string) []string {
	words := []string{}
	seen := map[string]bool{}
	for _, w := range strings.Fields(refine.NormalizeQuery(query)) {
		if len(w) < 3 || fallbackStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	if len(words) > 3 {
		words = words[:3]
	}
	return words
}

func archivesToResults(archives []model.Archive) []model.SearchResult {
	results := make([]model.SearchResult, len(archives))
	for i, a := range archives {
		results[i] = model.SearchResult{Archive: a}
	}
	return results
}

func (a *Agent) thread(id string) *thread {
	if id == "" {
		id = "default"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	th, ok := a.threads[id]
	if !ok {
		th = &thread{}
		a.threads[id] = th
	}
	return th
}

// EndThread discards the refinement state for a conversation thread.
func (a *Agent) EndThread(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.threads, id)
}
