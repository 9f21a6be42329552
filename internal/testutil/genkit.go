package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// NewGenkit initializes a plugin-free Genkit instance for unit tests.
// Register mock models and embedders on it with MockLLM.RegisterModel
// and MockEmbedder.RegisterEmbedder.
func NewGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	return genkit.Init(context.Background())
}
