// Package agent implements the specialized streaming agents behind the
// chat service.
//
// All agents share one capability: consume a routed request and stream
// a textual response as an incremental sequence of fragments. The
// stream is lazy, single-pass and non-restartable; the returned
// Response is the terminal completion signal.
package agent

import (
	"context"
	"errors"

	"github.com/aldenhart/ragchat/internal/selector"
)

// ErrEmptyQuery indicates a request with no usable query text.
var ErrEmptyQuery = errors.New("empty query")

// Request carries the routed intent into an agent.
type Request struct {
	OriginalQuery string             // the user's verbatim message
	RefinedQuery  string             // the selector's standalone rewrite
	Messages      []selector.Message // conversation history for tone and follow-ups
}

// query returns the refined query, falling back to the original.
func (r *Request) query() string {
	if r.RefinedQuery != "" {
		return r.RefinedQuery
	}
	return r.OriginalQuery
}

// StreamCallback receives one text fragment at a time. Returning an
// error aborts the stream.
type StreamCallback func(ctx context.Context, text string) error

// Response is the terminal result of a completed stream.
type Response struct {
	Text        string // the full accumulated response
	ContextUsed bool   // whether retrieved context backed the answer
}

// Agent is the shared contract of the specialized agents.
type Agent interface {
	// Name returns the agent's routing identity.
	Name() selector.AgentName

	// Stream produces the response incrementally via cb and returns the
	// terminal Response. Implementations must call cb at least once for
	// any non-empty response.
	Stream(ctx context.Context, req Request, cb StreamCallback) (*Response, error)
}
