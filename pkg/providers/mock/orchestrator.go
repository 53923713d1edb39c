package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/voxline/voxline/pkg/orchestrate"
)

type OrchestratorConfig struct {
	// Replies maps a lowercase keyword to the agent's answer. The first
	// keyword found in the caller's text wins.
	Replies      map[string]string
	DefaultReply string
}

// Orchestrator answers turns from a keyword table. It records every request
// it sees so demos and tests can inspect the conversation.
type Orchestrator struct {
	cfg OrchestratorConfig

	mu    sync.Mutex
	seen  []orchestrate.Request
	delay chan struct{}
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.DefaultReply == "" {
		cfg.DefaultReply = "Sorry, I did not catch that."
	}
	return &Orchestrator{cfg: cfg}
}

func (o *Orchestrator) ProcessTurn(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
	o.mu.Lock()
	o.seen = append(o.seen, req)
	gate := o.delay
	o.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return orchestrate.Response{}, ctx.Err()
		}
	}

	lower := strings.ToLower(req.Text)
	for keyword, reply := range o.cfg.Replies {
		if strings.Contains(lower, keyword) {
			return orchestrate.Response{Text: reply, Language: req.Language}, nil
		}
	}
	return orchestrate.Response{Text: o.cfg.DefaultReply, Language: req.Language}, nil
}

// Hold makes subsequent turns block until Release is called, so callers can
// exercise cancellation paths.
func (o *Orchestrator) Hold() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delay = make(chan struct{})
}

func (o *Orchestrator) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delay != nil {
		close(o.delay)
		o.delay = nil
	}
}

func (o *Orchestrator) Requests() []orchestrate.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]orchestrate.Request, len(o.seen))
	copy(out, o.seen)
	return out
}

var _ orchestrate.Orchestrator = (*Orchestrator)(nil)
