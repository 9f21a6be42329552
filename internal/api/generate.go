package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aldenhart/ragchat/internal/orchestrator"
	"github.com/aldenhart/ragchat/internal/retrieval"
	"github.com/aldenhart/ragchat/internal/selector"
)

// SSE event types for generation streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred after streaming started
)

// ChunkPayload is the SSE data payload for streaming text fragments.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Response    string `json:"response"`
	Agent       string `json:"agent"`
	ContextUsed bool   `json:"contextUsed"`
}

// ErrorPayload is the SSE data payload for mid-stream failures.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// generateHandler holds dependencies for the streaming generation endpoint.
type generateHandler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// generateRequest is the body for POST /api/v1/generate.
type generateRequest struct {
	Messages []selector.Message `json:"messages"`
	Agent    string             `json:"agent"`
	Query    string             `json:"query"`
}

// sseStream writes SSE events, deferring headers until the first event
// so failures before streaming can still produce a JSON error body.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// begin sends the SSE headers. Safe to call more than once.
func (s *sseStream) begin() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func (s *sseStream) writeEvent(event string, data any) error {
	s.begin()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// generate handles POST /api/v1/generate.
//
// Streams the chosen agent's response as SSE. Failures before the first
// fragment produce a non-200 JSON body; once the stream has started the
// status is already committed, so later failures end the stream with an
// error event instead.
func (h *generateHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSelectBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid JSON request body"}, h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeValidationError(w, map[string]string{"messages": "at least one message is required"}, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	// An unknown agent name is resolved by the orchestrator's fallback,
	// never rejected here.
	sel := selector.Selection{Agent: selector.AgentName(req.Agent), Query: req.Query}

	ctx := r.Context()
	stream := &sseStream{w: w, flusher: flusher}

	outcome, err := h.orch.RunSelected(ctx, sel, req.Messages, func(cbCtx context.Context, text string) error {
		select {
		case <-cbCtx.Done():
			return cbCtx.Err()
		default:
		}
		return stream.writeEvent(EventChunk, ChunkPayload{Text: text})
	})
	if err != nil {
		h.handleGenerateError(stream, err)
		return
	}

	if err := stream.writeEvent(EventDone, DonePayload{
		Response:    outcome.Response.Text,
		Agent:       string(outcome.Selection.Agent),
		ContextUsed: outcome.Response.ContextUsed,
	}); err != nil {
		// Write failure usually means the client went away.
		h.logger.Debug("writing done event", "error", err)
	}
}

// handleGenerateError reports a failed turn. Before the stream starts
// it maps the error to an HTTP status; afterwards it emits a terminal
// SSE error event.
func (h *generateHandler) handleGenerateError(stream *sseStream, err error) {
	h.logger.Error("generation failed", "error", err)

	if !stream.started {
		switch {
		case errors.Is(err, orchestrator.ErrBusy):
			WriteError(stream.w, http.StatusConflict, "busy", "a request is already in flight", h.logger)
		case errors.Is(err, io.ErrClosedPipe):
			// Client gone, nothing to write.
		default:
			WriteError(stream.w, http.StatusInternalServerError, "generation_failed", "failed to generate response", h.logger)
		}
		return
	}

	code := "generation_failed"
	if errors.Is(err, retrieval.ErrVectorStore) || errors.Is(err, retrieval.ErrEmbedding) {
		code = "retrieval_failed"
	}
	_ = stream.writeEvent(EventError, ErrorPayload{Code: code, Message: "failed to generate response"})
}
