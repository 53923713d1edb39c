// Package media composes one call's full pipeline: bridge, recognition
// driver, turn processor, and protocol dispatcher, with pool-scoped
// recognizer and synthesizer clients.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxline/voxline/pkg/bridge"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/orchestrate"
	"github.com/voxline/voxline/pkg/recog"
	"github.com/voxline/voxline/pkg/speech"
	"github.com/voxline/voxline/pkg/synth"
	"github.com/voxline/voxline/pkg/turn"
	"github.com/voxline/voxline/pkg/wire"
)

type Config struct {
	CallID   string
	Language string
	// Greeting is spoken when the first metadata frame arrives. Empty skips
	// the opening announcement.
	Greeting string
	// PendingEvents bounds the bridge buffer; the default of 1 keeps only
	// the freshest unprocessed event.
	PendingEvents int
	LoopBuffer    int
}

type Deps struct {
	Recognizers  recog.Pool
	Synthesizers synth.Pool
	Orchestrator orchestrate.Orchestrator
	Emitter      turn.Emitter
	DTMF         wire.DTMFHandler
}

// Handler owns one call's session state and lifecycle.
type Handler struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	running atomic.Bool

	mu          sync.Mutex
	started     bool
	stopped     bool
	br          *bridge.Bridge
	loop        *bridge.Loop
	driver      *recog.Driver
	proc        *turn.Processor
	disp        *wire.Dispatcher
	recognizer  recog.Client
	synthesizer synth.Client
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewHandler(cfg Config, deps Deps) *Handler {
	if cfg.Language == "" {
		cfg.Language = speech.DefaultLanguage
	}
	return &Handler{
		cfg:  cfg,
		deps: deps,
		log:  logging.NewComponentLogger(nil, "media_handler").With("call_id", cfg.CallID),
	}
}

// Start acquires per-call clients from the shared pools and wires the
// pipeline. On any failure it releases whatever was acquired.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return errors.New("media: call already started")
	}

	recognizer, recTier, err := h.deps.Recognizers.AcquireForSession(h.cfg.CallID)
	if err != nil {
		return fmt.Errorf("acquire recognizer: %w", err)
	}
	synthesizer, synTier, err := h.deps.Synthesizers.AcquireForSession(h.cfg.CallID)
	if err != nil {
		if !h.deps.Recognizers.ReleaseForSession(h.cfg.CallID, recognizer) {
			h.log.Warn("recognizer_release_failed")
		}
		return fmt.Errorf("acquire synthesizer: %w", err)
	}
	h.recognizer = recognizer
	h.synthesizer = synthesizer
	h.log.Info("call_resources_acquired",
		"recognizer", recognizer.Name(), "recognizer_tier", recTier,
		"synthesizer", synthesizer.Name(), "synthesizer_tier", synTier)

	h.br = bridge.New(bridge.Config{Capacity: h.cfg.PendingEvents})
	h.loop = bridge.NewLoop(h.cfg.LoopBuffer)

	h.driver = recog.NewDriver(recog.DriverConfig{
		CallID:   h.cfg.CallID,
		Language: h.cfg.Language,
	}, recognizer, h.br)

	h.proc = turn.NewProcessor(turn.Config{
		CallID:   h.cfg.CallID,
		Language: h.cfg.Language,
	}, h.br, h.loop, h.deps.Orchestrator, synthesizer, h.deps.Emitter)

	h.br.BindProcessor(h.proc)
	h.br.BindLoop(h.loop, h.cfg.CallID)
	h.driver.SetSpeakingProbe(h.proc.Interruptible)
	h.driver.SetBargeInCallback(func() {
		if err := h.deps.Emitter.EmitStopAudio(); err != nil {
			h.log.Warn("stop_audio_emit_error", "error", err.Error())
		}
	})

	h.disp = wire.NewDispatcher(h.cfg.CallID, h.driver, h.queueGreeting, h.deps.DTMF)

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		h.proc.Run(runCtx)
	}()

	h.started = true
	h.running.Store(true)
	h.log.Info("call_started")
	return nil
}

// HandleMessage routes one inbound wire message for this call.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) {
	h.mu.Lock()
	disp := h.disp
	h.mu.Unlock()
	if disp == nil || !h.running.Load() {
		return
	}
	disp.HandleMessage(ctx, raw)
}

// QueueDirectTextPlayback injects system speech (greetings, announcements)
// straight into the turn pipeline, bypassing recognition. It rejects when
// the call is not running, text is empty, or kind is not system speech.
func (h *Handler) QueueDirectTextPlayback(text string, kind speech.Kind) error {
	if !h.running.Load() {
		return errors.New("media: call not running")
	}
	if text == "" {
		return errors.New("media: empty playback text")
	}
	if kind != speech.KindGreeting && kind != speech.KindAnnouncement {
		return fmt.Errorf("media: kind %q is not system speech", kind)
	}
	ev, err := speech.NewEvent(kind, text, h.cfg.Language)
	if err != nil {
		return err
	}
	h.mu.Lock()
	br := h.br
	h.mu.Unlock()
	if br == nil {
		return errors.New("media: call not running")
	}
	br.Enqueue(ev)
	return nil
}

// Stop tears the call down: disarms recognition, cancels in-flight work,
// and releases pooled clients. Safe to call multiple times and from error
// paths; cleanup failures are logged, never propagated as call failures.
func (h *Handler) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	driver := h.driver
	proc := h.proc
	cancel := h.cancel
	done := h.done
	recognizer := h.recognizer
	synthesizer := h.synthesizer
	h.mu.Unlock()

	h.running.Store(false)

	if driver != nil {
		if err := driver.Disarm(); err != nil {
			h.log.Warn("disarm_error", "error", err.Error())
		}
	}
	if proc != nil {
		proc.CancelCurrentProcessing()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if recognizer != nil {
		if !h.deps.Recognizers.ReleaseForSession(h.cfg.CallID, recognizer) {
			h.log.Warn("recognizer_release_failed")
		}
	}
	if synthesizer != nil {
		if !h.deps.Synthesizers.ReleaseForSession(h.cfg.CallID, synthesizer) {
			h.log.Warn("synthesizer_release_failed")
		}
	}
	h.log.Info("call_stopped")
	return nil
}

// Running reports whether the call accepts media and direct playback.
func (h *Handler) Running() bool { return h.running.Load() }

func (h *Handler) procInFlight() bool {
	h.mu.Lock()
	proc := h.proc
	h.mu.Unlock()
	if proc == nil {
		return false
	}
	return proc.InFlight()
}

func (h *Handler) queueGreeting() error {
	if h.cfg.Greeting == "" {
		return nil
	}
	return h.QueueDirectTextPlayback(h.cfg.Greeting, speech.KindGreeting)
}
