package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aldenhart/ragchat/internal/retrieval"
)

// maxSearchTopK caps the number of matches a single search may request.
const maxSearchTopK = 50

// searchHandler holds dependencies for the retrieval diagnostic endpoint.
type searchHandler struct {
	pipeline *retrieval.Pipeline
	logger   *slog.Logger
}

// searchRequest is the body for POST /api/v1/search.
type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// searchResultItem is the JSON representation of a retrieval match.
type searchResultItem struct {
	Text        string  `json:"text"`
	Score       float32 `json:"score"`
	Source      string  `json:"source"`
	ContentType string  `json:"contentType"`
}

// search handles POST /api/v1/search.
//
// Returns raw nearest-neighbor matches without re-ranking or
// generation, for inspecting the retrieval stage in isolation.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSelectBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid JSON request body"}, h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeValidationError(w, map[string]string{"query": "query is required"}, h.logger)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	result, err := h.pipeline.Retrieve(r.Context(), req.Query,
		retrieval.WithFinalK(topK),
		retrieval.WithOverFetch(1),
		retrieval.WithRerank(false),
	)
	if err != nil {
		h.logger.Error("searching knowledge base", "error", err, "query_len", len(req.Query))
		WriteError(w, http.StatusInternalServerError, "search_failed", "failed to search knowledge base", h.logger)
		return
	}

	items := make([]searchResultItem, len(result.Items))
	for i, it := range result.Items {
		items[i] = searchResultItem{
			Text:        it.Text,
			Score:       it.Score,
			Source:      it.Source,
			ContentType: string(it.ContentType),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}
