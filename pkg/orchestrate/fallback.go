package orchestrate

import (
	"context"
	"log/slog"

	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/memory"
	"github.com/voxline/voxline/pkg/resilience"
)

const defaultApology = "I'm sorry, I'm having trouble right now. Could you say that again?"

type FallbackOptions struct {
	// ApologyByLanguage overrides the spoken fallback per locale.
	ApologyByLanguage map[string]string
	Breaker           *resilience.CircuitBreaker
	History           *memory.Store
}

type fallback struct {
	next Orchestrator
	opts FallbackOptions
	log  *slog.Logger
}

// WithFallback wraps an orchestrator so that its errors surface as a normal
// spoken response instead of an unhandled fault that kills the call.
// Cancellation is passed through untouched: an interrupted turn is not a
// failure and must not produce an apology.
func WithFallback(next Orchestrator, opts FallbackOptions) Orchestrator {
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewFailureBreaker(3, 0)
	}
	return &fallback{
		next: next,
		opts: opts,
		log:  logging.NewComponentLogger(nil, "orchestrator"),
	}
}

func (f *fallback) ProcessTurn(ctx context.Context, req Request) (Response, error) {
	if !f.opts.Breaker.Allow() {
		f.log.Warn("orchestrator_circuit_open",
			"call_id", req.CallID,
			"reason_code", string(errorsx.ReasonOrchestratorCircuitOpen))
		return f.apologize(req), nil
	}

	resp, err := f.next.ProcessTurn(ctx, req)
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonOrchestratorTurn)
		f.log.Error("orchestrator_turn_error",
			"call_id", req.CallID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		f.opts.Breaker.OnError(err)
		return f.apologize(req), nil
	}
	f.opts.Breaker.OnSuccess()

	if resp.Language == "" {
		resp.Language = req.Language
	}
	f.record(req, resp)
	return resp, nil
}

func (f *fallback) apologize(req Request) Response {
	text := defaultApology
	if t, ok := f.opts.ApologyByLanguage[req.Language]; ok && t != "" {
		text = t
	}
	return Response{Text: text, Language: req.Language}
}

func (f *fallback) record(req Request, resp Response) {
	if f.opts.History == nil {
		return
	}
	f.opts.History.Append(req.CallID, memory.Entry{
		Role:     memory.RoleCaller,
		Text:     req.Text,
		Language: req.Language,
	})
	f.opts.History.Append(req.CallID, memory.Entry{
		Role:     memory.RoleAgent,
		Text:     resp.Text,
		Language: resp.Language,
	})
}
