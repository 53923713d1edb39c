// Package turn runs the single cooperative task that drains the event
// buffer, decides what constitutes a completed turn, invokes the
// orchestrator, and owns cancellation of in-flight turn work.
package turn

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxline/voxline/pkg/bridge"
	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/orchestrate"
	"github.com/voxline/voxline/pkg/speech"
	"github.com/voxline/voxline/pkg/synth"
)

// Emitter writes outbound frames for the call. Implementations serialize
// writes themselves; the processor may emit from the turn goroutine.
type Emitter interface {
	EmitAudio(pcm []byte) error
	EmitStopAudio() error
}

type Config struct {
	CallID   string
	Language string
	// Session context handed to the orchestrator on every turn.
	Session map[string]string
}

// Processor is IDLE while waiting on the buffer and PROCESSING while an
// orchestrator invocation is in flight. Exactly zero or one in-flight
// handle exists at a time.
type Processor struct {
	cfg   Config
	br    *bridge.Bridge
	loop  *bridge.Loop
	orch  orchestrate.Orchestrator
	voice synth.Client
	emit  Emitter
	log   *slog.Logger

	speaking atomic.Bool

	mu       sync.Mutex
	inflight context.CancelFunc
}

func NewProcessor(cfg Config, br *bridge.Bridge, loop *bridge.Loop, orch orchestrate.Orchestrator, voice synth.Client, emit Emitter) *Processor {
	if cfg.Language == "" {
		cfg.Language = speech.DefaultLanguage
	}
	return &Processor{
		cfg:   cfg,
		br:    br,
		loop:  loop,
		orch:  orch,
		voice: voice,
		emit:  emit,
		log:   logging.NewComponentLogger(nil, "turn_processor").With("call_id", cfg.CallID),
	}
}

// AgentSpeaking reports whether response audio is currently being emitted.
// Safe to call from the recognition engine's goroutine.
func (p *Processor) AgentSpeaking() bool { return p.speaking.Load() }

// Run drives the call's cooperative loop until ctx is canceled. Events are
// processed strictly in arrival order; loop tasks (barge-in cancellation)
// are served even while a turn is in flight.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.loop.Close()
			return
		case fn := <-p.loop.Tasks():
			fn()
		case ev := <-p.br.Events():
			p.handle(ctx, ev)
		}
	}
}

func (p *Processor) handle(ctx context.Context, ev speech.Event) {
	switch {
	case ev.Kind().Terminal():
		p.runTurn(ctx, ev)
	case ev.Kind() == speech.KindFault:
		// Logged and dropped; the call keeps listening.
		p.log.Warn("recognition_fault_dropped",
			"reason_code", string(errorsx.ReasonRecognizerFault),
			"error", ev.Text())
	default:
		// Partials only exist to drive barge-in, which the driver already
		// signaled out-of-band.
		p.log.Debug("partial_discarded", "text", ev.Text())
	}
}

// runTurn keeps serving loop tasks while the orchestrator invocation runs in
// its own goroutine, so barge-in cancellation lands mid-flight instead of
// queueing behind the turn.
func (p *Processor) runTurn(ctx context.Context, ev speech.Event) {
	tctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.inflight = cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.invoke(tctx, ev)
	}()

	for {
		select {
		case <-done:
			p.clearInflight()
			cancel()
			return
		case fn := <-p.loop.Tasks():
			fn()
		case <-ctx.Done():
			cancel()
			<-done
			p.clearInflight()
			return
		}
	}
}

func (p *Processor) invoke(ctx context.Context, ev speech.Event) {
	resp, err := p.orch.ProcessTurn(ctx, orchestrate.Request{
		CallID:   p.cfg.CallID,
		Text:     ev.Text(),
		Language: ev.Language(),
		Session:  p.cfg.Session,
	})
	if ctx.Err() != nil {
		p.log.Debug("turn_canceled", "kind", string(ev.Kind()))
		return
	}
	if err != nil {
		// The fallback wrapper normally absorbs orchestrator errors; a raw
		// orchestrator can still fail, and that must not end the call.
		p.log.Error("turn_error",
			"reason_code", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonOrchestratorTurn))),
			"error", err.Error())
		return
	}
	if resp.Text == "" {
		return
	}
	p.speak(ctx, resp)
	p.log.Info("turn_completed",
		"kind", string(ev.Kind()),
		"latency_ms", ev.Age().Milliseconds())
}

func (p *Processor) speak(ctx context.Context, resp orchestrate.Response) {
	language := resp.Language
	if language == "" {
		language = p.cfg.Language
	}
	chunks, err := p.voice.Synthesize(ctx, resp.Text, language)
	if err != nil {
		p.log.Error("synthesis_error",
			"reason_code", string(errorsx.ReasonSynthStream),
			"error", err.Error())
		return
	}

	p.speaking.Store(true)
	defer p.speaking.Store(false)
	for chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		if err := p.emit.EmitAudio(chunk); err != nil {
			p.log.Warn("audio_emit_error",
				"reason_code", string(errorsx.ReasonTransportSend),
				"error", err.Error())
			return
		}
	}
}

// CancelCurrentProcessing cancels the in-flight orchestrator invocation if
// one exists, clears any pending events still in the buffer, and resets the
// in-flight handle. Safe to call from any context and when nothing is in
// flight.
func (p *Processor) CancelCurrentProcessing() {
	p.mu.Lock()
	cancel := p.inflight
	p.inflight = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.log.Info("turn_interrupted")
	}
	if n := p.br.DrainPending(); n > 0 {
		p.log.Debug("pending_events_cleared", "count", n)
	}
}

// Interruptible reports whether caller speech should barge in: true while a
// turn is processing or response audio is playing.
func (p *Processor) Interruptible() bool {
	return p.speaking.Load() || p.InFlight()
}

// InFlight reports whether a turn is currently processing.
func (p *Processor) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight != nil
}

func (p *Processor) clearInflight() {
	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
}
