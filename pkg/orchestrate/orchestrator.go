// Package orchestrate defines the conversational orchestrator contract and a
// resilient wrapper that keeps orchestrator failures out of the call path.
package orchestrate

import "context"

// Request carries one completed caller turn plus call/session context.
type Request struct {
	CallID   string
	Text     string
	Language string
	Session  map[string]string
}

// Response is what the agent speaks back.
type Response struct {
	Text     string
	Language string
}

// Orchestrator turns recognized text into a response. Implementations must
// honor ctx cancellation at their await points; barge-in cancels the context
// mid-flight.
type Orchestrator interface {
	ProcessTurn(ctx context.Context, req Request) (Response, error)
}

// Func adapts a plain function to the Orchestrator interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) ProcessTurn(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
