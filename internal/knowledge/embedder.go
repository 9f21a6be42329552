package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// Embedder wraps a genkit embedder and pins the output dimension.
//
// gemini-embedding-001 produces 3072-dimensional vectors by default and
// supports truncation via OutputDimensionality. Every vector leaving
// this type is verified against the pinned dimension; a mismatch is
// returned as ErrDimensionMismatch rather than silently stored.
type Embedder struct {
	embedder ai.Embedder
	dim      int32
}

// NewEmbedder creates an Embedder around a genkit ai.Embedder,
// requesting and enforcing dim-sized vectors. A non-positive dim falls
// back to VectorDimension, the dimension both storage schemas use.
func NewEmbedder(embedder ai.Embedder, dim int32) *Embedder {
	if dim <= 0 {
		dim = VectorDimension
	}
	return &Embedder{embedder: embedder, dim: dim}
}

// Embed generates embeddings for the given texts, one vector per text,
// in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dim := e.dim
	docs := make([]*ai.Document, 0, len(texts))
	for _, t := range texts {
		docs = append(docs, ai.DocumentFromText(t, nil))
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != int(dim) {
			return nil, fmt.Errorf("%w: text %d produced %d dimensions, want %d",
				ErrDimensionMismatch, i, len(emb.Embedding), dim)
		}
		vectors = append(vectors, emb.Embedding)
	}
	return vectors, nil
}

// EmbedOne generates a single embedding, typically for a search query.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
