package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aldenhart/ragchat/internal/chunker"
)

// ErrNoChunks indicates chunking produced nothing to ingest. Callers
// must treat this as a request-level validation failure, not success.
var ErrNoChunks = errors.New("no chunks created")

// ArticleInput is a long-form document to ingest. It is chunked before
// embedding; one point is stored per chunk.
type ArticleInput struct {
	Text        string
	Title       string
	Author      string
	URL         string
	PublishedAt time.Time
	Language    string
}

// PostInput is a short-form document to ingest. It is embedded and
// stored as a single point without chunking.
type PostInput struct {
	Text     string
	Author   string
	Topic    string
	URL      string
	Likes    int
	Comments int
	PostedAt time.Time
}

// IngestStats reports what an ingestion run produced.
type IngestStats struct {
	ChunksCreated  int
	ChunksUploaded int
	TextLength     int
}

// Ingestor turns raw documents into stored points: chunk, embed,
// upsert. Safe for concurrent use.
type Ingestor struct {
	embedder     *Embedder
	store        Store
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewIngestor creates an Ingestor. Chunking parameters are validated
// lazily by the chunker on first use.
func NewIngestor(embedder *Embedder, store Store, chunkSize, chunkOverlap int, logger *slog.Logger) (*Ingestor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}, nil
}

// IngestArticle chunks, embeds and stores a long-form document.
//
// Each ingestion run mints fresh point IDs, so re-ingesting the same
// document stores new points rather than deduplicating by source. This
// is a known limitation, not a guarantee.
func (ing *Ingestor) IngestArticle(ctx context.Context, in ArticleInput) (*IngestStats, error) {
	chunks, err := chunker.Split(in.Text, ing.chunkSize, ing.chunkOverlap, in.URL)
	if err != nil {
		return nil, fmt.Errorf("chunking article: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: article text is empty", ErrNoChunks)
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}

	vectors, err := ing.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding article chunks: %w", err)
	}

	batch := uuid.NewString()
	now := time.Now()
	payload := Payload{Article: &ArticlePayload{
		Title:       in.Title,
		Author:      in.Author,
		URL:         in.URL,
		PublishedAt: in.PublishedAt,
	}}

	points := make([]Point, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, Point{
			ID:          fmt.Sprintf("%s#%d", batch, c.Index),
			Content:     c.Content,
			ContentType: ContentTypeArticle,
			Source:      in.URL,
			ChunkIndex:  c.Index,
			Payload:     payload,
			Vector:      vectors[i],
			CreatedAt:   now,
		})
	}

	if err := ing.store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("storing article points: %w", err)
	}

	ing.logger.Info("ingested article",
		"title", in.Title,
		"chunks", len(points),
		"text_length", len(in.Text))

	return &IngestStats{
		ChunksCreated:  len(chunks),
		ChunksUploaded: len(points),
		TextLength:     len(in.Text),
	}, nil
}

// IngestPost embeds and stores a short-form document as a single point.
func (ing *Ingestor) IngestPost(ctx context.Context, in PostInput) (*IngestStats, error) {
	if in.Text == "" {
		return nil, fmt.Errorf("%w: post text is empty", ErrNoChunks)
	}

	vector, err := ing.embedder.EmbedOne(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding post: %w", err)
	}

	id := uuid.NewString()
	point := Point{
		ID:          id,
		Content:     in.Text,
		ContentType: ContentTypePost,
		Source:      id,
		Payload: Payload{Post: &PostPayload{
			Author:   in.Author,
			Topic:    in.Topic,
			URL:      in.URL,
			Likes:    in.Likes,
			Comments: in.Comments,
			PostedAt: in.PostedAt,
		}},
		Vector:    vector,
		CreatedAt: time.Now(),
	}

	if err := ing.store.Upsert(ctx, []Point{point}); err != nil {
		return nil, fmt.Errorf("storing post point: %w", err)
	}

	ing.logger.Info("ingested post", "author", in.Author, "text_length", len(in.Text))

	return &IngestStats{
		ChunksCreated:  1,
		ChunksUploaded: 1,
		TextLength:     len(in.Text),
	}, nil
}
