package intent

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/resilience"
	"github.com/warisan-digital/arkib/pkg/anthropic"
)

const classifySystemPrompt = `You classify queries sent to a Malaysian heritage archive search assistant.

Classify the user's query into exactly ONE of these labels:

HERITAGE_SEARCH - the user wants heritage materials (batik, crafts, temples, textiles, historical documents, "show all videos", ...)
GREETING - hello, hi, thanks, how are you
UNCLEAR - vague queries with no searchable content (why, huh, show me something)
UNRELATED - non-heritage topics (weather, news, jokes, coding help)

If you are uncertain, still commit to the single most plausible label.
Respond with the label only, nothing else.`

// Classifier asks the oracle to label a query with one of the four
// intents. Classification is not deterministic across calls; nothing in
// the system depends on label stability.
type Classifier struct {
	oracle anthropic.Client
	model  string
	retry  resilience.RetryConfig
}

// NewClassifier creates a Classifier using the given oracle and model ID.
func NewClassifier(oracle anthropic.Client, model string) *Classifier {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("anthropic", "classify")
	return &Classifier{oracle: oracle, model: model, retry: cfg}
}

// Classify labels the query. An oracle failure or an unparseable label is
// surfaced as an error; no default intent is assumed.
func (c *Classifier) Classify(ctx context.Context, query string) (Intent, error) {
	temp := 0.0
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.oracle.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: 16,
			System: []anthropic.SystemBlock{{
				Text:         classifySystemPrompt,
				CacheControl: &anthropic.CacheControl{TTL: "5m"},
			}},
			Messages:    []anthropic.Message{{Role: "user", Content: query}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "intent: classify")
	}
	resp.Usage.LogUsage(c.model, "classify")

	label := strings.ToUpper(strings.TrimSpace(resp.Text()))
	// Tolerate minor decoration around the label.
	label = strings.Trim(label, "\"'.`*")

	parsed, err := Parse(label)
	if err != nil {
		return "", eris.Wrapf(err, "intent: oracle returned unusable label for query %q", query)
	}

	zap.L().Info("query classified",
		zap.String("query", query),
		zap.String("intent", string(parsed)),
	)
	return parsed, nil
}
