package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/aldenhart/ragchat/internal/selector"
)

// linkedinSystemPrompt is the static role-defining instruction for the
// content-generation agent. No retrieval is involved; the refined query
// is the only grounding.
const linkedinSystemPrompt = `You are a professional LinkedIn content writer.
Write engaging, authentic posts in a professional but personable voice.
Keep posts concise, use short paragraphs, and avoid clickbait.
Do not invent specific facts, numbers or names the user did not provide.`

// LinkedIn is the content-generation agent. It streams directly from
// the generation model without consulting the knowledge base.
type LinkedIn struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	logger      *slog.Logger
}

// NewLinkedIn creates the LinkedIn agent. modelName may point at a
// fine-tuned generation model.
func NewLinkedIn(g *genkit.Genkit, modelName string, temperature float32, logger *slog.Logger) (*LinkedIn, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkedIn{g: g, modelName: modelName, temperature: temperature, logger: logger}, nil
}

// Name implements Agent.
func (a *LinkedIn) Name() selector.AgentName {
	return selector.AgentLinkedIn
}

// Stream implements Agent.
func (a *LinkedIn) Stream(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	query := req.query()
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(linkedinSystemPrompt),
		ai.WithMessages(buildMessages(req.Messages, query)...),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &a.temperature}),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("linkedin generation: %w", err)
	}

	a.logger.Debug("linkedin stream completed", "response_length", len(resp.Text()))
	return &Response{Text: resp.Text()}, nil
}

// buildMessages converts prior conversation turns plus the grounding
// query into genkit messages. System messages are dropped; the agent's
// own system prompt is authoritative.
func buildMessages(history []selector.Message, query string) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case selector.RoleUser:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case selector.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(query)))
	return messages
}
