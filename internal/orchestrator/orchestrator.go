// Package orchestrator sequences a chat turn: selection, agent
// dispatch, streamed generation.
//
// It enforces a single in-flight turn. While a turn is running, new
// submissions are rejected with ErrBusy rather than queued; this is a
// backpressure policy, not a scheduler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aldenhart/ragchat/internal/agent"
	"github.com/aldenhart/ragchat/internal/selector"
)

// ErrBusy indicates a turn is already in flight.
var ErrBusy = errors.New("a request is already in flight")

// State is the orchestrator's lifecycle phase.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingSelection State = "awaiting_selection"
	StateStreaming         State = "streaming"
)

// Outcome is the terminal result of a completed turn.
type Outcome struct {
	Selection selector.Selection
	Response  *agent.Response
}

// Orchestrator runs chat turns. Safe for concurrent use; concurrent
// Run calls beyond the first fail fast with ErrBusy.
type Orchestrator struct {
	sel    *selector.Selector
	agents map[selector.AgentName]agent.Agent
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator. The agents map must contain an entry
// for selector.AgentRAG, the fallback target.
func New(sel *selector.Selector, agents map[selector.AgentName]agent.Agent, logger *slog.Logger) (*Orchestrator, error) {
	if sel == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if _, ok := agents[selector.AgentRAG]; !ok {
		return nil, fmt.Errorf("agents map must include the rag agent")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sel:    sel,
		agents: agents,
		logger: logger,
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// transition moves to the next state under the lock.
func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one chat turn: classify the conversation, dispatch to
// the chosen agent and stream its response through cb.
//
// Returns ErrBusy without side effects when a turn is already running.
func (o *Orchestrator) Run(ctx context.Context, messages []selector.Message, cb agent.StreamCallback) (*Outcome, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.state = StateAwaitingSelection
	o.mu.Unlock()

	defer o.transition(StateIdle)

	if len(messages) == 0 {
		return nil, selector.ErrNoMessages
	}

	sel, err := o.sel.SelectWithFallback(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("selecting agent: %w", err)
	}

	o.transition(StateStreaming)

	return o.dispatch(ctx, sel, messages, cb)
}

// RunSelected skips classification and dispatches a pre-made selection,
// as the generation endpoint does when the client already called the
// selection endpoint.
func (o *Orchestrator) RunSelected(ctx context.Context, sel selector.Selection, messages []selector.Message, cb agent.StreamCallback) (*Outcome, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.state = StateStreaming
	o.mu.Unlock()

	defer o.transition(StateIdle)

	return o.dispatch(ctx, sel, messages, cb)
}

// dispatch resolves the agent and streams its response. An unknown
// agent name degrades to the RAG agent rather than failing the turn.
func (o *Orchestrator) dispatch(ctx context.Context, sel selector.Selection, messages []selector.Message, cb agent.StreamCallback) (*Outcome, error) {
	ag, ok := o.agents[sel.Agent]
	if !ok {
		o.logger.Warn("no agent registered for selection, using rag", "agent", sel.Agent)
		sel.Agent = selector.AgentRAG
		ag = o.agents[selector.AgentRAG]
	}

	req := agent.Request{
		OriginalQuery: lastUserContent(messages),
		RefinedQuery:  sel.Query,
		Messages:      messages,
	}

	resp, err := ag.Stream(ctx, req, cb)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", ag.Name(), err)
	}

	o.logger.Debug("turn completed", "agent", ag.Name(), "response_length", len(resp.Text))
	return &Outcome{Selection: sel, Response: resp}, nil
}

// lastUserContent returns the content of the most recent user message.
func lastUserContent(messages []selector.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == selector.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
