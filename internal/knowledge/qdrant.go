package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// qdrantCollection is the single collection holding all points. Content
// types are distinguished by payload filter rather than per-type
// collections so cross-type search stays a single query.
const qdrantCollection = "ragchat_points"

// QdrantStore is the Qdrant gRPC backend.
//
// QdrantStore is safe for concurrent use by multiple goroutines.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	logger      *slog.Logger
}

// NewQdrantStore connects to a Qdrant server and ensures the collection
// exists. addr is host:port of the gRPC endpoint (default port 6334).
func NewQdrantStore(ctx context.Context, addr string, logger *slog.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to Qdrant at %s: %w", addr, err)
	}

	s := &QdrantStore{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		logger:      logger,
	}

	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// ensureCollection creates the collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("listing Qdrant collections: %w", err)
	}

	for _, col := range list.GetCollections() {
		if col.GetName() == qdrantCollection {
			return nil
		}
	}

	s.logger.Info("creating Qdrant collection", "collection", qdrantCollection, "dimension", VectorDimension)
	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: qdrantCollection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(VectorDimension),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating Qdrant collection: %w", err)
	}
	return nil
}

// pointUUID derives a stable UUID from the point's string ID so that
// re-ingesting the same chunk overwrites rather than duplicates.
func pointUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert stores points, replacing existing points with the same IDs.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	upserts := make([]*qdrantclient.PointStruct, 0, len(points))
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

		upserts = append(upserts, &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: pointUUID(p.ID)},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: p.Vector},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				"id":           {Kind: &qdrantclient.Value_StringValue{StringValue: p.ID}},
				"content":      {Kind: &qdrantclient.Value_StringValue{StringValue: p.Content}},
				"content_type": {Kind: &qdrantclient.Value_StringValue{StringValue: string(p.ContentType)}},
				"source":       {Kind: &qdrantclient.Value_StringValue{StringValue: p.Source}},
				"chunk_index":  {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
				"payload":      {Kind: &qdrantclient.Value_StringValue{StringValue: string(payloadJSON)}},
				"created_at":   {Kind: &qdrantclient.Value_StringValue{StringValue: createdAt.Format(time.RFC3339Nano)}},
			},
		})
	}

	_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: qdrantCollection,
		Points:         upserts,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(upserts), err)
	}

	s.logger.Debug("upserted points", "count", len(upserts))
	return nil
}

// contentTypeFilter builds a keyword match filter on content_type.
func contentTypeFilter(ct ContentType) *qdrantclient.Filter {
	return &qdrantclient.Filter{
		Must: []*qdrantclient.Condition{
			{
				ConditionOneOf: &qdrantclient.Condition_Field{
					Field: &qdrantclient.FieldCondition{
						Key: "content_type",
						Match: &qdrantclient.Match{
							MatchValue: &qdrantclient.Match_Keyword{Keyword: string(ct)},
						},
					},
				},
			},
		},
	}
}

// Search returns the nearest points by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Match, error) {
	if len(vector) != int(VectorDimension) {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	req := &qdrantclient.SearchPoints{
		CollectionName: qdrantCollection,
		Vector:         vector,
		Limit:          uint64(cfg.topK),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if cfg.contentType != "" {
		if !cfg.contentType.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, cfg.contentType)
		}
		req.Filter = contentTypeFilter(cfg.contentType)
	}

	resp, err := s.points.Search(queryCtx, req)
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		payload := scored.GetPayload()

		p := Point{
			ID:          payload["id"].GetStringValue(),
			Content:     payload["content"].GetStringValue(),
			ContentType: ContentType(payload["content_type"].GetStringValue()),
			Source:      payload["source"].GetStringValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		}
		if raw := payload["payload"].GetStringValue(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &p.Payload); err != nil {
				s.logger.Warn("failed to parse point payload", "point_id", p.ID, "error", err)
			}
		}
		if raw := payload["created_at"].GetStringValue(); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				p.CreatedAt = t
			}
		}

		matches = append(matches, Match{Point: p, Score: scored.GetScore()})
	}

	return matches, nil
}

// Count returns the number of stored points, optionally by content type.
func (s *QdrantStore) Count(ctx context.Context, contentType ContentType) (int, error) {
	req := &qdrantclient.CountPoints{CollectionName: qdrantCollection}
	if contentType != "" {
		req.Filter = contentTypeFilter(contentType)
	}

	resp, err := s.points.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Delete removes all points belonging to the given source document.
func (s *QdrantStore) Delete(ctx context.Context, source string) error {
	_, err := s.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: qdrantCollection,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
				Filter: &qdrantclient.Filter{
					Must: []*qdrantclient.Condition{
						{
							ConditionOneOf: &qdrantclient.Condition_Field{
								Field: &qdrantclient.FieldCondition{
									Key: "source",
									Match: &qdrantclient.Match{
										MatchValue: &qdrantclient.Match_Keyword{Keyword: source},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points for source %q: %w", source, err)
	}

	s.logger.Debug("deleted points", "source", source)
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}
