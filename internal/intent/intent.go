// Package intent classifies incoming queries into a closed set of intents
// via the Anthropic oracle and supplies canned text responses for the
// non-search intents. Only HeritageSearch may ever reach the search
// backend; that boundary is enforced by the agent.
package intent

import "fmt"

// Intent is the classified purpose of a user query.
type Intent string

const (
	HeritageSearch Intent = "HERITAGE_SEARCH"
	Greeting       Intent = "GREETING"
	Unclear        Intent = "UNCLEAR"
	Unrelated      Intent = "UNRELATED"
)

// Parse maps a label string to an Intent. Unknown labels are an error; no
// default intent is ever assumed.
func Parse(label string) (Intent, error) {
	switch Intent(label) {
	case HeritageSearch, Greeting, Unclear, Unrelated:
		return Intent(label), nil
	default:
		return "", fmt.Errorf("intent: unknown label %q", label)
	}
}

// IsSearch reports whether the intent routes to the search machinery.
func (i Intent) IsSearch() bool {
	return i == HeritageSearch
}

// Canned responses for non-search intents, mirroring the assistant's
// voice. HeritageSearch has no canned response.
var cannedResponses = map[Intent]string{
	Greeting:  "Hello! I'm here to help you search our heritage archive. What cultural materials would you like to explore?",
	Unclear:   "Could you provide more details? For example, specify a type (batik, crafts), location (Penang, Kelantan), or time period.",
	Unrelated: "I can only help search for heritage materials like traditional crafts, cultural artifacts, and historical documents. What heritage items interest you?",
}

// CannedResponse returns the fixed text response for a non-search intent,
// or "" for HeritageSearch.
func CannedResponse(i Intent) string {
	return cannedResponses[i]
}

// NoResultsMessage is shown when search and fallback both come up empty.
const NoResultsMessage = "I couldn't find relevant heritage materials matching your query. Try describing what you're looking for in different words, or browse our collection for inspiration."
