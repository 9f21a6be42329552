package knowledge

import (
	"errors"
	"testing"
)

func validArticlePoint() Point {
	return Point{
		ID:          "doc-1#0",
		Content:     "some article text",
		ContentType: ContentTypeArticle,
		Source:      "doc-1",
		ChunkIndex:  0,
		Payload:     Payload{Article: &ArticlePayload{Title: "A Title"}},
		Vector:      make([]float32, VectorDimension),
	}
}

func TestContentTypeValid(t *testing.T) {
	t.Parallel()

	if !ContentTypeArticle.Valid() {
		t.Error("article should be valid")
	}
	if !ContentTypePost.Valid() {
		t.Error("post should be valid")
	}
	if ContentType("tweet").Valid() {
		t.Error("tweet should not be valid")
	}
	if ContentType("").Valid() {
		t.Error("empty content type should not be valid")
	}
}

func TestPointValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Point)
		wantErr error
	}{
		{
			name:   "valid article",
			mutate: func(*Point) {},
		},
		{
			name: "valid post",
			mutate: func(p *Point) {
				p.ContentType = ContentTypePost
				p.Payload = Payload{Post: &PostPayload{Author: "someone"}}
			},
		},
		{
			name:    "empty content",
			mutate:  func(p *Point) { p.Content = "" },
			wantErr: ErrEmptyContent,
		},
		{
			name:    "unknown content type",
			mutate:  func(p *Point) { p.ContentType = "tweet" },
			wantErr: ErrInvalidContentType,
		},
		{
			name: "post payload on article point",
			mutate: func(p *Point) {
				p.Payload = Payload{Post: &PostPayload{}}
			},
			wantErr: ErrPayloadMismatch,
		},
		{
			name: "both payload variants set",
			mutate: func(p *Point) {
				p.Payload.Post = &PostPayload{}
			},
			wantErr: ErrPayloadMismatch,
		},
		{
			name:    "missing payload",
			mutate:  func(p *Point) { p.Payload = Payload{} },
			wantErr: ErrPayloadMismatch,
		},
		{
			name:    "wrong vector dimension",
			mutate:  func(p *Point) { p.Vector = make([]float32, 10) },
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "nil vector",
			mutate:  func(p *Point) { p.Vector = nil },
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validArticlePoint()
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchOptions(t *testing.T) {
	t.Parallel()

	cfg := buildSearchConfig(nil)
	if cfg.topK != 5 {
		t.Errorf("default topK = %d, want 5", cfg.topK)
	}
	if cfg.contentType != "" {
		t.Errorf("default contentType = %q, want empty", cfg.contentType)
	}

	cfg = buildSearchConfig([]SearchOption{WithTopK(12), WithContentType(ContentTypePost)})
	if cfg.topK != 12 {
		t.Errorf("topK = %d, want 12", cfg.topK)
	}
	if cfg.contentType != ContentTypePost {
		t.Errorf("contentType = %q, want post", cfg.contentType)
	}
}
