//go:build integration

package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aldenhart/ragchat/internal/testutil"
)

// basisVector returns a unit vector along the given axis, giving clean
// cosine scores: 1 for the same axis, 0 for orthogonal ones.
func basisVector(axis int) []float32 {
	v := make([]float32, VectorDimension)
	v[axis] = 1
	return v
}

func integrationPoint(id string, axis int) Point {
	return Point{
		ID:          id,
		Content:     "content for " + id,
		ContentType: ContentTypeArticle,
		Source:      "https://example.com/" + id,
		Payload: Payload{Article: &ArticlePayload{
			Title:       "Title " + id,
			URL:         "https://example.com/" + id,
			PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		Vector: basisVector(axis),
	}
}

func TestPGStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewPGStore(db.Pool, testutil.DiscardLogger())
	require.NoError(t, err)

	points := []Point{
		integrationPoint("doc-a", 0),
		integrationPoint("doc-b", 1),
		{
			ID:          "post-c",
			Content:     "a short post",
			ContentType: ContentTypePost,
			Source:      "post-c",
			Payload:     Payload{Post: &PostPayload{Author: "someone", PostedAt: time.Now()}},
			Vector:      basisVector(2),
		},
	}
	require.NoError(t, store.Upsert(ctx, points))

	// Nearest neighbor to axis 0 is doc-a with a perfect score.
	matches, err := store.Search(ctx, basisVector(0), WithTopK(2))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, "doc-a", matches[0].Point.ID)
	require.InDelta(t, 1.0, matches[0].Score, 0.001)
	require.NotNil(t, matches[0].Point.Payload.Article)
	require.Equal(t, "Title doc-a", matches[0].Point.Payload.Article.Title)

	// Content-type filter excludes articles entirely.
	matches, err = store.Search(ctx, basisVector(2), WithTopK(5), WithContentType(ContentTypePost))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "post-c", matches[0].Point.ID)

	// Counts, total and per type.
	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)
	articles, err := store.Count(ctx, ContentTypeArticle)
	require.NoError(t, err)
	require.Equal(t, 2, articles)

	// Upserting an existing ID updates in place.
	updated := integrationPoint("doc-a", 3)
	updated.Content = "rewritten content"
	require.NoError(t, store.Upsert(ctx, []Point{updated}))
	total, err = store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)

	matches, err = store.Search(ctx, basisVector(3), WithTopK(1))
	require.NoError(t, err)
	require.Equal(t, "rewritten content", matches[0].Point.Content)

	// Delete by source removes all of a document's points.
	require.NoError(t, store.Delete(ctx, "https://example.com/doc-b"))
	total, err = store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, total)
}
