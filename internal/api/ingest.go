package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aldenhart/ragchat/internal/knowledge"
)

// maxIngestBodyBytes limits ingestion request bodies.
const maxIngestBodyBytes = 4 << 20

// ingestHandler holds dependencies for the ingestion endpoints.
type ingestHandler struct {
	ingestor *knowledge.Ingestor
	logger   *slog.Logger
}

// articleRequest is the body for POST /api/v1/ingest/article.
type articleRequest struct {
	Text     string `json:"text"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	URL      string `json:"url"`
	Date     string `json:"date"`
	Language string `json:"language,omitempty"`
}

// postRequest is the body for POST /api/v1/ingest/post.
type postRequest struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	Topic    string `json:"topic,omitempty"`
	URL      string `json:"url,omitempty"`
	Likes    int    `json:"likes,omitempty"`
	Comments int    `json:"comments,omitempty"`
	Date     string `json:"date"`
}

// ingestArticle handles POST /api/v1/ingest/article.
// The text is chunked before embedding; one point is stored per chunk.
func (h *ingestHandler) ingestArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid JSON request body"}, h.logger)
		return
	}

	details := map[string]string{}
	if strings.TrimSpace(req.Text) == "" {
		details["text"] = "text is required"
	}
	if strings.TrimSpace(req.Title) == "" {
		details["title"] = "title is required"
	}
	if strings.TrimSpace(req.Author) == "" {
		details["author"] = "author is required"
	}
	if req.URL == "" {
		details["url"] = "url is required"
	} else if !validHTTPURL(req.URL) {
		details["url"] = "url must be a valid http(s) URL"
	}
	var publishedAt time.Time
	if req.Date == "" {
		details["date"] = "date is required"
	} else {
		var err error
		publishedAt, err = parseDate(req.Date)
		if err != nil {
			details["date"] = "date must be YYYY-MM-DD or RFC 3339"
		}
	}
	if len(details) > 0 {
		writeValidationError(w, details, h.logger)
		return
	}

	stats, err := h.ingestor.IngestArticle(r.Context(), knowledge.ArticleInput{
		Text:        req.Text,
		Title:       req.Title,
		Author:      req.Author,
		URL:         req.URL,
		PublishedAt: publishedAt,
		Language:    req.Language,
	})
	if err != nil {
		if errors.Is(err, knowledge.ErrNoChunks) {
			writeValidationError(w, map[string]string{"text": "text produced no chunks"}, h.logger)
			return
		}
		h.logger.Error("ingesting article", "error", err, "title", req.Title)
		WriteError(w, http.StatusInternalServerError, "ingest_failed", "failed to ingest article", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"chunksCreated":  stats.ChunksCreated,
		"chunksUploaded": stats.ChunksUploaded,
		"title":          req.Title,
		"textLength":     stats.TextLength,
	}, h.logger)
}

// ingestPost handles POST /api/v1/ingest/post.
// Short-form content is embedded and stored as a single point.
func (h *ingestHandler) ingestPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, map[string]string{"body": "invalid JSON request body"}, h.logger)
		return
	}

	details := map[string]string{}
	if strings.TrimSpace(req.Text) == "" {
		details["text"] = "text is required"
	}
	if strings.TrimSpace(req.Author) == "" {
		details["author"] = "author is required"
	}
	if req.URL != "" && !validHTTPURL(req.URL) {
		details["url"] = "url must be a valid http(s) URL"
	}
	var postedAt time.Time
	if req.Date == "" {
		details["date"] = "date is required"
	} else {
		var err error
		postedAt, err = parseDate(req.Date)
		if err != nil {
			details["date"] = "date must be YYYY-MM-DD or RFC 3339"
		}
	}
	if len(details) > 0 {
		writeValidationError(w, details, h.logger)
		return
	}

	stats, err := h.ingestor.IngestPost(r.Context(), knowledge.PostInput{
		Text:     req.Text,
		Author:   req.Author,
		Topic:    req.Topic,
		URL:      req.URL,
		Likes:    req.Likes,
		Comments: req.Comments,
		PostedAt: postedAt,
	})
	if err != nil {
		if errors.Is(err, knowledge.ErrNoChunks) {
			writeValidationError(w, map[string]string{"text": "text is required"}, h.logger)
			return
		}
		h.logger.Error("ingesting post", "error", err, "author", req.Author)
		WriteError(w, http.StatusInternalServerError, "ingest_failed", "failed to ingest post", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"chunksUploaded": stats.ChunksUploaded,
		"author":         req.Author,
		"textLength":     stats.TextLength,
	}, h.logger)
}

// validHTTPURL reports whether raw parses as an absolute http(s) URL.
func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseDate accepts a bare date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
