package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aldenhart/ragchat/internal/selector"
)

// maxSelectBodyBytes limits selection and generation request bodies.
const maxSelectBodyBytes = 1 << 20

// selectHandler holds dependencies for the agent selection endpoint.
type selectHandler struct {
	sel    *selector.Selector
	logger *slog.Logger
}

// selectRequest is the body for POST /api/v1/select.
type selectRequest struct {
	Messages []selector.Message `json:"messages"`
}

// selectAgent handles POST /api/v1/select.
//
// Routing never fails the request: when classification errors out the
// fallback policy picks the retrieval agent, so the only 400 here is a
// missing conversation.
func (h *selectHandler) selectAgent(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSelectBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid JSON request body"}, h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeValidationError(w, map[string]string{"messages": "at least one message is required"}, h.logger)
		return
	}

	sel, err := h.sel.SelectWithFallback(r.Context(), req.Messages)
	if err != nil {
		h.logger.Error("selecting agent", "error", err)
		WriteError(w, http.StatusInternalServerError, "selection_failed", "failed to select agent", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"agent": string(sel.Agent),
		"query": sel.Query,
	}, h.logger)
}
