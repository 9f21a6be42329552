package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/aldenhart/ragchat/internal/retrieval"
	"github.com/aldenhart/ragchat/internal/selector"
)

// retriever is the slice of retrieval.Pipeline the RAG agent needs.
type retriever interface {
	Retrieve(ctx context.Context, query string, opts ...retrieval.Option) (*retrieval.Result, error)
}

// ragSystemPrompt instructs the model to stay inside the supplied
// context. The insufficient-context instruction is a required part of
// the contract, not a nicety: without it the model fabricates answers
// when retrieval comes back thin.
const ragSystemPrompt = `You are a documentation assistant.
Answer using ONLY the context from documentation provided in the user message.
If the context does not contain enough information to answer, say so
explicitly and do not invent an answer.`

// ragNoContextPrompt is used when retrieval finds nothing at all.
const ragNoContextPrompt = `You are a documentation assistant.
No relevant documentation was found for this question. Tell the user
clearly that the knowledge base has no relevant context for their
question, and do not attempt to answer from general knowledge.`

// RAG is the retrieval-grounded agent.
type RAG struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	pipeline    retriever
	logger      *slog.Logger
}

// NewRAG creates the RAG agent.
func NewRAG(g *genkit.Genkit, modelName string, temperature float32, pipeline retriever, logger *slog.Logger) (*RAG, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("retrieval pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAG{g: g, modelName: modelName, temperature: temperature, pipeline: pipeline, logger: logger}, nil
}

// Name implements Agent.
func (a *RAG) Name() selector.AgentName {
	return selector.AgentRAG
}

// Stream implements Agent. Retrieval failures abort the stream before
// any fragment is produced, so the caller can still send a structured
// error to the client.
func (a *RAG) Stream(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	query := req.query()
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	result, err := a.pipeline.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	system := ragSystemPrompt
	prompt := query
	if result.Empty() {
		a.logger.Debug("no context retrieved", "query_length", len(query))
		system = ragNoContextPrompt
	} else {
		prompt = fmt.Sprintf("Context from documentation:\n\n%s\n\nQuestion: %s", result.Context(), query)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(system),
		ai.WithMessages(buildMessages(req.Messages, prompt)...),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &a.temperature}),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("rag generation: %w", err)
	}

	a.logger.Debug("rag stream completed",
		"context_items", len(result.Items),
		"response_length", len(resp.Text()))

	return &Response{Text: resp.Text(), ContextUsed: !result.Empty()}, nil
}
