// Package knowledge provides the vector knowledge base for retrieval.
//
// Content is ingested as chunked points, each carrying an embedding, a
// content type tag and a typed payload. Two storage backends implement
// the Store interface: PostgreSQL + pgvector (default) and Qdrant over
// gRPC. Embedding generation lives in Embedder so both backends work on
// plain float32 vectors.
package knowledge

import (
	"errors"
	"fmt"
	"time"
)

// VectorDimension is the embedding dimension used across storage
// backends. gemini-embedding-001 truncates to this size via
// OutputDimensionality. Changing it requires re-embedding every
// stored point.
const VectorDimension int32 = 768

var (
	// ErrInvalidContentType indicates an unknown content type tag.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrEmptyContent indicates a point with no text to embed.
	ErrEmptyContent = errors.New("empty content")

	// ErrDimensionMismatch indicates the embedder returned a vector whose
	// dimension does not match the storage schema. This is a hard failure:
	// storing a mis-sized vector would poison similarity search.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPayloadMismatch indicates the payload variant does not match the
	// point's content type.
	ErrPayloadMismatch = errors.New("payload does not match content type")
)

// ContentType tags a point with the kind of source material it came from.
type ContentType string

const (
	// ContentTypeArticle is long-form editorial content.
	ContentTypeArticle ContentType = "article"

	// ContentTypePost is short-form social content.
	ContentTypePost ContentType = "post"
)

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeArticle, ContentTypePost:
		return true
	}
	return false
}

// ArticlePayload carries metadata specific to article content.
type ArticlePayload struct {
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// PostPayload carries metadata specific to post content, including
// engagement counters captured at ingestion time.
type PostPayload struct {
	Author   string    `json:"author,omitempty"`
	Topic    string    `json:"topic,omitempty"`
	URL      string    `json:"url,omitempty"`
	Likes    int       `json:"likes,omitempty"`
	Comments int       `json:"comments,omitempty"`
	PostedAt time.Time `json:"posted_at,omitempty"`
}

// Payload is a tagged union over the per-content-type metadata variants.
// Exactly one field is non-nil, matching the owning point's ContentType.
type Payload struct {
	Article *ArticlePayload `json:"article,omitempty"`
	Post    *PostPayload    `json:"post,omitempty"`
}

// validateFor checks that the populated variant matches ct.
func (p Payload) validateFor(ct ContentType) error {
	switch ct {
	case ContentTypeArticle:
		if p.Article == nil || p.Post != nil {
			return fmt.Errorf("%w: article point requires article payload only", ErrPayloadMismatch)
		}
	case ContentTypePost:
		if p.Post == nil || p.Article != nil {
			return fmt.Errorf("%w: post point requires post payload only", ErrPayloadMismatch)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidContentType, ct)
	}
	return nil
}

// Point is one stored chunk of knowledge: content plus its embedding
// and metadata. Points are immutable once stored; re-ingesting the same
// ID replaces the previous version.
type Point struct {
	ID          string
	Content     string
	ContentType ContentType
	Source      string // originating document identifier
	ChunkIndex  int    // position within the source document
	Payload     Payload
	Vector      []float32
	CreatedAt   time.Time
}

// Validate checks the point's structural invariants before storage.
func (p *Point) Validate() error {
	if p.Content == "" {
		return ErrEmptyContent
	}
	if !p.ContentType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, p.ContentType)
	}
	if err := p.Payload.validateFor(p.ContentType); err != nil {
		return err
	}
	if len(p.Vector) != int(VectorDimension) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(p.Vector), VectorDimension)
	}
	return nil
}

// Match is a single search result with its similarity score.
type Match struct {
	Point Point
	Score float32 // cosine similarity, higher is closer
}

// SearchOption configures search behavior using the functional options
// pattern, as in context.WithTimeout or grpc.Dial.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK        int
	contentType ContentType // empty = no filter
	timeout     time.Duration
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithContentType restricts results to a single content type.
func WithContentType(ct ContentType) SearchOption {
	return func(c *searchConfig) {
		c.contentType = ct
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
