package knowledge

import "context"

// Store is the storage contract shared by the pgvector and Qdrant
// backends. Implementations must be safe for concurrent use.
type Store interface {
	// Upsert stores the given points, replacing any existing points
	// with the same IDs. Every point must pass Validate.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the points nearest to the query vector, ordered by
	// descending similarity. An empty store yields an empty slice, not
	// an error.
	Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Match, error)

	// Count returns the number of stored points, optionally restricted
	// to one content type (empty = all).
	Count(ctx context.Context, contentType ContentType) (int, error)

	// Delete removes all points belonging to the given source document.
	Delete(ctx context.Context, source string) error
}
