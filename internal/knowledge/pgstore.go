package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// querier is the slice of pgx functionality PGStore needs. Defined on
// the consumer side so *pgxpool.Pool, pgx.Tx and test fakes all satisfy
// it without adaptation.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertPointSQL = `INSERT INTO documents (id, content, content_type, source, chunk_index, payload, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		content_type = EXCLUDED.content_type,
		source = EXCLUDED.source,
		chunk_index = EXCLUDED.chunk_index,
		payload = EXCLUDED.payload,
		embedding = EXCLUDED.embedding`

const searchPointsSQL = `SELECT id, content, content_type, source, chunk_index, payload, created_at,
		1 - (embedding <=> $1) AS score
	FROM documents
	ORDER BY embedding <=> $1
	LIMIT $2`

const searchPointsByTypeSQL = `SELECT id, content, content_type, source, chunk_index, payload, created_at,
		1 - (embedding <=> $1) AS score
	FROM documents
	WHERE content_type = $2
	ORDER BY embedding <=> $1
	LIMIT $3`

// PGStore is the PostgreSQL + pgvector backend.
//
// PGStore is safe for concurrent use by multiple goroutines.
type PGStore struct {
	db     querier
	logger *slog.Logger
}

// NewPGStore creates a PGStore. Pass a *pgxpool.Pool in production or a
// fake querier in tests.
func NewPGStore(db querier, logger *slog.Logger) (*PGStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, logger: logger}, nil
}

// Upsert stores points, replacing existing points with the same IDs.
func (s *PGStore) Upsert(ctx context.Context, points []Point) error {
	for i := range points {
		p := &points[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %q: %w", p.ID, err)
		}

		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshaling payload for point %q: %w", p.ID, err)
		}

		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		embedding := pgvector.NewVector(p.Vector)
		_, err = s.db.Exec(ctx, upsertPointSQL,
			p.ID, p.Content, string(p.ContentType), p.Source, p.ChunkIndex,
			payloadJSON, &embedding, createdAt)
		if err != nil {
			return fmt.Errorf("upserting point %q: %w", p.ID, err)
		}
	}

	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

// Search returns the nearest points by cosine similarity.
func (s *PGStore) Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Match, error) {
	if len(vector) != int(VectorDimension) {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	cfg := buildSearchConfig(opts)

	// Bounded query time so a cold index cannot block a chat turn.
	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryEmbedding := pgvector.NewVector(vector)

	var rows pgx.Rows
	var err error
	if cfg.contentType != "" {
		if !cfg.contentType.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, cfg.contentType)
		}
		rows, err = s.db.Query(queryCtx, searchPointsByTypeSQL, &queryEmbedding, string(cfg.contentType), cfg.topK)
	} else {
		rows, err = s.db.Query(queryCtx, searchPointsSQL, &queryEmbedding, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching points: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, cfg.topK)
	for rows.Next() {
		var (
			p           Point
			contentType string
			payloadJSON []byte
			score       float32
		)
		if err := rows.Scan(&p.ID, &p.Content, &contentType, &p.Source, &p.ChunkIndex,
			&payloadJSON, &p.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		p.ContentType = ContentType(contentType)
		if err := json.Unmarshal(payloadJSON, &p.Payload); err != nil {
			s.logger.Warn("failed to parse point payload", "point_id", p.ID, "error", err)
		}
		matches = append(matches, Match{Point: p, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return matches, nil
}

// Count returns the number of stored points, optionally by content type.
func (s *PGStore) Count(ctx context.Context, contentType ContentType) (int, error) {
	var count int64
	var err error
	if contentType != "" {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE content_type = $1`,
			string(contentType)).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	// Overflow protection for 32-bit platforms
	if count > math.MaxInt {
		return 0, fmt.Errorf("point count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes all points belonging to the given source document.
func (s *PGStore) Delete(ctx context.Context, source string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE source = $1`, source)
	if err != nil {
		return fmt.Errorf("deleting points for source %q: %w", source, err)
	}

	s.logger.Debug("deleted points", "source", source, "count", tag.RowsAffected())
	return nil
}
