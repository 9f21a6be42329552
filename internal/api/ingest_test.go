package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aldenhart/ragchat/internal/knowledge"
	"github.com/aldenhart/ragchat/internal/testutil"
)

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v\nbody: %s", err, w.Body.String())
	}
	return body
}

func TestIngestArticleChunksLongText(t *testing.T) {
	srv, store := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	body := `{
		"text": "` + strings.Repeat("A", 600) + `",
		"title": "T",
		"author": "a",
		"url": "https://x/y",
		"date": "2024-01-01"
	}`
	w := postJSON(t, srv, "/api/v1/ingest/article", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["success"] != true {
		t.Error("success = false, want true")
	}
	// 600 chars at size 500 with overlap 50 spans at least two windows.
	if created, _ := resp["chunksCreated"].(float64); created < 2 {
		t.Errorf("chunksCreated = %v, want >= 2", resp["chunksCreated"])
	}
	if resp["textLength"].(float64) != 600 {
		t.Errorf("textLength = %v, want 600", resp["textLength"])
	}

	n, err := store.Count(t.Context(), knowledge.ContentTypeArticle)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n < 2 {
		t.Errorf("stored points = %d, want >= 2", n)
	}
}

func TestIngestArticleMissingURL(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	w := postJSON(t, srv, "/api/v1/ingest/article",
		`{"text": "some text", "title": "T", "author": "a", "date": "2024-01-01"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["error"] != "Validation failed" {
		t.Errorf("error = %q, want %q", resp["error"], "Validation failed")
	}
	details, _ := resp["details"].(map[string]any)
	if _, ok := details["url"]; !ok {
		t.Errorf("details missing url entry: %v", resp["details"])
	}
}

func TestIngestArticleValidationDetails(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty text", `{"text": "", "title": "T", "author": "a", "url": "https://x/y", "date": "2024-01-01"}`, "text"},
		{"missing title", `{"text": "t", "author": "a", "url": "https://x/y", "date": "2024-01-01"}`, "title"},
		{"missing author", `{"text": "t", "title": "T", "url": "https://x/y", "date": "2024-01-01"}`, "author"},
		{"relative url", `{"text": "t", "title": "T", "author": "a", "url": "/y", "date": "2024-01-01"}`, "url"},
		{"bad date", `{"text": "t", "title": "T", "author": "a", "url": "https://x/y", "date": "yesterday"}`, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, srv, "/api/v1/ingest/article", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			resp := decodeBody(t, w)
			if resp["error"] != "Validation failed" {
				t.Errorf("error = %q, want %q", resp["error"], "Validation failed")
			}
			details, _ := resp["details"].(map[string]any)
			if _, ok := details[tt.field]; !ok {
				t.Errorf("details missing %q entry: %v", tt.field, resp["details"])
			}
		})
	}
}

func TestIngestArticleInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	w := postJSON(t, srv, "/api/v1/ingest/article", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestIngestPost(t *testing.T) {
	srv, store := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	w := postJSON(t, srv, "/api/v1/ingest/post",
		`{"text": "Short insight about Go.", "author": "a", "topic": "golang", "date": "2024-02-02"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["success"] != true {
		t.Error("success = false, want true")
	}
	if resp["chunksUploaded"].(float64) != 1 {
		t.Errorf("chunksUploaded = %v, want 1 (posts are never chunked)", resp["chunksUploaded"])
	}

	n, err := store.Count(t.Context(), knowledge.ContentTypePost)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("stored points = %d, want 1", n)
	}
}

func TestIngestPostMissingAuthor(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewMockLLM("ok"), ServerConfig{})

	w := postJSON(t, srv, "/api/v1/ingest/post", `{"text": "t", "date": "2024-02-02"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["error"] != "Validation failed" {
		t.Errorf("error = %q, want %q", resp["error"], "Validation failed")
	}
}
