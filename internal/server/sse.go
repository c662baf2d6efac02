package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// handleSearchStream serves the progress event stream as Server-Sent
// Events. Events are forwarded in production order, one `data:` frame
// each. When the client disconnects the request context is cancelled,
// which stops the agent from issuing further search attempts.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for ev := range s.agent.Stream(ctx, req.Query, req.ThreadID) {
		payload, err := json.Marshal(ev)
		if err != nil {
			zap.L().Warn("stream: marshal event failed", zap.Error(err))
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
