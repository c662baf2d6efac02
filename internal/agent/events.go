package agent

import (
	"time"

	"github.com/warisan-digital/arkib/internal/model"
)

// EventType identifies one streaming progress event.
type EventType string

const (
	// EventQueryReceived acknowledges the query before any work starts.
	EventQueryReceived EventType = "query_received"
	// EventSearching reports that a search attempt is running.
	EventSearching EventType = "searching"
	// EventResults carries partial results as they become available.
	EventResults EventType = "results"
	// EventMessage carries a text response for non-search intents.
	EventMessage EventType = "message"
	// EventComplete is the terminal success event with the final outcome.
	EventComplete EventType = "complete"
	// EventError is the terminal failure event.
	EventError EventType = "error"
)

// Response type labels on the terminal event.
const (
	ResponseResults = "results"
	ResponseMessage = "message"
)

// Event is one entry in the ordered progress stream for a request.
// Exactly one terminal event (complete or error) is emitted per request.
type Event struct {
	Type         EventType            `json:"type"`
	Query        string               `json:"query,omitempty"`
	ThreadID     string               `json:"thread_id,omitempty"`
	Timestamp    time.Time            `json:"timestamp,omitzero"`
	Attempt      int                  `json:"attempt,omitempty"`
	Archives     []model.SearchResult `json:"archives,omitempty"`
	Total        int                  `json:"total,omitempty"`
	Message      string               `json:"message,omitempty"`
	ResponseType string               `json:"response_type,omitempty"`
	Intent       string               `json:"intent,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Response is the final outcome of one query, as returned by the blocking
// Search API. Streaming callers assemble the same information from the
// terminal event.
type Response struct {
	ResponseType string               `json:"response_type"`
	Archives     []model.SearchResult `json:"archives"`
	Total        int                  `json:"total"`
	Query        string               `json:"query"`
	Message      string               `json:"message,omitempty"`
	Intent       string               `json:"intent,omitempty"`
}
