// Package selector routes a conversation to one of the specialized
// agents using a constrained-output classification call.
//
// The selector never blocks the conversation: callers that need a
// guaranteed selection use SelectWithFallback, which degrades to the
// pure Resolve policy when the model call fails or returns output that
// does not validate.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

var (
	// ErrNoMessages indicates an empty conversation.
	ErrNoMessages = errors.New("conversation has no messages")

	// ErrSelectionParse indicates the model's structured output failed
	// schema validation (unknown agent or empty query). Recovered via
	// the fallback policy, never surfaced to the end user.
	ErrSelectionParse = errors.New("selection output failed validation")
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentName identifies a specialized agent.
type AgentName string

const (
	// AgentLinkedIn generates LinkedIn-style content without retrieval.
	AgentLinkedIn AgentName = "linkedin"

	// AgentRAG answers questions grounded in the knowledge base.
	AgentRAG AgentName = "rag"
)

// Valid reports whether a is a member of the agent enum.
func (a AgentName) Valid() bool {
	switch a {
	case AgentLinkedIn, AgentRAG:
		return true
	}
	return false
}

// Selection is the routable intent extracted from a conversation.
// Transient, recomputed per user turn.
type Selection struct {
	Agent AgentName `json:"agent"`
	Query string    `json:"query"`
}

// Catalog maps agent names to the descriptions shown to the routing
// model. Initialized once at startup and passed in explicitly.
type Catalog map[AgentName]string

// DefaultCatalog returns the built-in agent descriptions.
func DefaultCatalog() Catalog {
	return Catalog{
		AgentLinkedIn: "Generates LinkedIn-style posts and professional social content. Choose for requests to write, draft or polish a post.",
		AgentRAG:      "Answers questions using the indexed documentation and knowledge base. Choose for informational questions.",
	}
}

// historyWindow bounds how much conversation the routing prompt sees.
// Five messages keeps prompt cost flat while preserving short-range
// follow-up context.
const historyWindow = 5

// Selector classifies conversations. Safe for concurrent use.
type Selector struct {
	g         *genkit.Genkit
	modelName string
	catalog   Catalog
	logger    *slog.Logger
}

// New creates a Selector.
func New(g *genkit.Genkit, modelName string, catalog Catalog, logger *slog.Logger) (*Selector, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{g: g, modelName: modelName, catalog: catalog, logger: logger}, nil
}

// Select classifies the conversation into a Selection.
//
// Only the most recent historyWindow messages are sent to the model.
// The output is schema-validated: an unknown agent or empty query is an
// ErrSelectionParse, never silently coerced.
func (s *Selector) Select(ctx context.Context, messages []Message) (Selection, error) {
	if len(messages) == 0 {
		return Selection{}, ErrNoMessages
	}

	window := messages
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}

	// Routing is classification, keep sampling near-deterministic.
	temp := float32(0.1)
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithPrompt(s.buildPrompt(window)),
		ai.WithOutputType(Selection{}),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &temp}),
	)
	if err != nil {
		return Selection{}, fmt.Errorf("selection model call: %w", err)
	}

	var sel Selection
	if err := resp.Output(&sel); err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrSelectionParse, err)
	}
	if !sel.Agent.Valid() {
		return Selection{}, fmt.Errorf("%w: unknown agent %q", ErrSelectionParse, sel.Agent)
	}
	if strings.TrimSpace(sel.Query) == "" {
		return Selection{}, fmt.Errorf("%w: empty refined query", ErrSelectionParse)
	}

	return sel, nil
}

// SelectWithFallback classifies the conversation and degrades to
// Resolve on any failure, so a usable selection is always produced.
func (s *Selector) SelectWithFallback(ctx context.Context, messages []Message) (Selection, error) {
	if len(messages) == 0 {
		return Selection{}, ErrNoMessages
	}

	sel, err := s.Select(ctx, messages)
	if err != nil {
		s.logger.Warn("selection failed, using fallback", "error", err)
		return Resolve(messages), nil
	}
	return sel, nil
}

// buildPrompt renders the routing prompt from the catalog and the
// conversation window.
func (s *Selector) buildPrompt(window []Message) string {
	var sb strings.Builder
	sb.WriteString("Classify the conversation below and pick the best agent to handle the latest user request.\n\n")
	sb.WriteString("Available agents:\n")
	for _, name := range []AgentName{AgentLinkedIn, AgentRAG} {
		if desc, ok := s.catalog[name]; ok {
			fmt.Fprintf(&sb, "- %s: %s\n", name, desc)
		}
	}
	sb.WriteString("\nReturn a JSON object with \"agent\" (one of the agent names above) and \"query\" (the user's intent rewritten as a standalone query).\n\n")
	sb.WriteString("Conversation:\n")
	for _, m := range window {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return sb.String()
}

// Resolve is the pure fallback policy: route to the RAG agent with the
// verbatim last user message as the query. Guaranteed to return a valid
// Selection for any non-empty conversation.
func Resolve(messages []Message) Selection {
	if len(messages) == 0 {
		return Selection{Agent: AgentRAG}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return Selection{Agent: AgentRAG, Query: messages[i].Content}
		}
	}
	// No user message at all; fall back to the last message of any role.
	return Selection{Agent: AgentRAG, Query: messages[len(messages)-1].Content}
}
