package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/intent"
	"github.com/warisan-digital/arkib/internal/refine"
	"github.com/warisan-digital/arkib/internal/resilience"
	"github.com/warisan-digital/arkib/pkg/anthropic"
)

// Planner produces query variants for a search attempt and refined
// queries after a failed one.
type Planner interface {
	Variants(ctx context.Context, query string) ([]string, error)
	Refine(ctx context.Context, req refine.Request) (string, error)
}

const variantsSystemPrompt = `You generate search query variations for a Malaysian heritage archive's vector search.

Given a user query, produce 3 to 5 diverse variations that capture different aspects of the intent:
- the original keywords
- synonyms and related terms
- a more specific variation (e.g. "batik sarong patterns" from "batik")
- a broader cultural-context variation (e.g. "traditional Malaysian textiles" from "batik")

Respond with one variation per line, nothing else.`

const refineSystemPrompt = `You refine a failed search query for a Malaysian heritage archive's vector search.

The previous query found nothing relevant. Produce ONE new query with different keywords or phrasing: more specific terms, related concepts, or alternative terminology. Do not repeat any query that was already tried.

Respond with the new query only, nothing else.`

// maxVariants caps how many variations one attempt searches.
const maxVariants = 5

// OraclePlanner asks the Anthropic oracle for variants and refinements.
type OraclePlanner struct {
	oracle anthropic.Client
	model  string
	retry  resilience.RetryConfig
}

// NewOraclePlanner creates a Planner backed by the given oracle and model.
func NewOraclePlanner(oracle anthropic.Client, model string) *OraclePlanner {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("anthropic", "plan")
	return &OraclePlanner{oracle: oracle, model: model, retry: cfg}
}

// Variants generates diverse query variations for one search attempt. The
// user query itself is always the first variant.
func (p *OraclePlanner) Variants(ctx context.Context, query string) ([]string, error) {
	temp := 0.2
	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.oracle.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.model,
			MaxTokens: 256,
			System: []anthropic.SystemBlock{{
				Text:         variantsSystemPrompt,
				CacheControl: &anthropic.CacheControl{TTL: "5m"},
			}},
			Messages:    []anthropic.Message{{Role: "user", Content: query}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "planner: generate variants")
	}
	resp.Usage.LogUsage(p.model, "variants")

	variants := []string{query}
	seen := map[string]bool{refine.NormalizeQuery(query): true}
	for _, line := range strings.Split(resp.Text(), "\n") {
		v := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if v == "" || intent.LooksLikeToolCode(v) {
			continue
		}
		norm := refine.NormalizeQuery(v)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		variants = append(variants, v)
		if len(variants) == maxVariants {
			break
		}
	}

	zap.L().Debug("planner: variants generated",
		zap.String("query", query),
		zap.Strings("variants", variants),
	)
	return variants, nil
}

// Refine asks for a single replacement query after a failed attempt,
// passing along every query already tried so the oracle avoids them.
func (p *OraclePlanner) Refine(ctx context.Context, req refine.Request) (string, error) {
	prompt := fmt.Sprintf(
		"The query %q failed: %s.\nQueries already tried: %s\nProduce one new query.",
		req.FailedQuery, req.Reason, strings.Join(req.TriedQueries, ", "),
	)

	temp := 0.5
	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.oracle.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.model,
			MaxTokens: 64,
			System: []anthropic.SystemBlock{{
				Text:         refineSystemPrompt,
				CacheControl: &anthropic.CacheControl{TTL: "5m"},
			}},
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "planner: refine query")
	}
	resp.Usage.LogUsage(p.model, "refine")

	refined := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text()), "\"'`"))
	if refined == "" || intent.LooksLikeToolCode(refined) {
		return "", eris.Errorf("planner: unusable refinement for %q", req.FailedQuery)
	}
	return refined, nil
}
