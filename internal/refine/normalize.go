package refine

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeQuery casefolds a query and collapses internal whitespace so
// that retries can be compared loosely ("Batik  Kelantan" vs "batik
// kelantan" count as the same attempt).
func NormalizeQuery(q string) string {
	folded := cases.Fold().String(strings.TrimSpace(q))
	return strings.Join(strings.Fields(folded), " ")
}

// AlreadyTried reports whether query matches a previously tried query
// after normalization. Tried-query bookkeeping itself stays verbatim; this
// is only a convenience for callers generating refinements.
func (s *State) AlreadyTried(query string) bool {
	norm := NormalizeQuery(query)
	for _, tried := range s.TriedQueries {
		if NormalizeQuery(tried) == norm {
			return true
		}
	}
	return false
}
