package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// rerankOutput is the structured response the scoring model must produce.
type rerankOutput struct {
	Scores []float32 `json:"scores"`
}

// LLMReranker scores candidates with a constrained-output model call.
// One call covers the whole candidate list, so re-ranking adds a single
// round-trip regardless of pool size.
type LLMReranker struct {
	g         *genkit.Genkit
	modelName string
}

// NewLLMReranker creates an LLMReranker using the given genkit model
// name (e.g. "googleai/gemini-2.5-flash").
func NewLLMReranker(g *genkit.Genkit, modelName string) *LLMReranker {
	return &LLMReranker{g: g, modelName: modelName}
}

// Rerank returns one relevance score per candidate, in candidate order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Score each passage for relevance to the query on a 0.0 to 1.0 scale.\n")
	sb.WriteString("Return a JSON object with a \"scores\" array containing exactly one score per passage, in order.\n\n")
	fmt.Fprintf(&sb, "Query: %s\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Passage %d:\n%s\n\n", i+1, c)
	}

	// Scoring is a classification task, keep sampling near-deterministic.
	temp := float32(0.0)
	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.modelName),
		ai.WithPrompt(sb.String()),
		ai.WithOutputType(rerankOutput{}),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &temp}),
	)
	if err != nil {
		return nil, fmt.Errorf("rerank model call: %w", err)
	}

	var out rerankOutput
	if err := resp.Output(&out); err != nil {
		return nil, fmt.Errorf("parsing rerank output: %w", err)
	}
	if len(out.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d scores for %d candidates", len(out.Scores), len(candidates))
	}

	return out.Scores, nil
}
