// Package voxline wires configuration, providers, pools, and the media
// server into one runnable engine.
package voxline

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxline/voxline/pkg/configutil"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/media"
	"github.com/voxline/voxline/pkg/memory"
	"github.com/voxline/voxline/pkg/orchestrate"
	"github.com/voxline/voxline/pkg/pools"
	"github.com/voxline/voxline/pkg/recog"
	"github.com/voxline/voxline/pkg/resilience"
	"github.com/voxline/voxline/pkg/runner"
	"github.com/voxline/voxline/pkg/synth"
	"github.com/voxline/voxline/pkg/transports/twilio"
	"github.com/voxline/voxline/pkg/transports/wsmedia"
	"github.com/voxline/voxline/pkg/turn"
	"github.com/voxline/voxline/pkg/wire"
)

type Engine struct {
	cfg       Config
	providers *ProviderRegistry
	history   *memory.Store
	orch      orchestrate.Orchestrator
	server    *wsmedia.Server
	dialer    *twilio.Dialer

	recognizers  *pools.Pool[recog.Client]
	synthesizers *pools.Pool[synth.Client]

	ctx    context.Context
	cancel context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Orchestrator produces the agent's reply for each caller turn. It is
	// wrapped with circuit-breaking fallback before use.
	Orchestrator orchestrate.Orchestrator
	// DTMF receives keypad digits pressed during a call. Optional.
	DTMF wire.DTMFHandler
}

func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	slog.Info("voxline_init",
		"environment", cfg.Environment,
		"recognizer_provider", cfg.Vendors.Recognizer.Provider,
		"synthesizer_provider", cfg.Vendors.Synthesizer.Provider,
	)

	e := &Engine{
		cfg:       cfg,
		providers: providers,
		history:   memory.NewStore(cfg.Memory.MaxHistory),
	}

	e.orch = orchestrate.WithFallback(opts.Orchestrator, orchestrate.FallbackOptions{
		ApologyByLanguage: cfg.Call.ApologyByLanguage,
		Breaker:           resilience.NewFailureBreaker(3, 30*time.Second),
		History:           e.history,
	})

	e.recognizers = pools.New("recognizers", cfg.Pools.RecognizerIdle, func(sessionID string) (recog.Client, error) {
		return providers.BuildRecognizer(
			cfg.Vendors.Recognizer.Provider,
			cfg.Vendors.Recognizer.Settings,
			sessionID,
			cfg.Call.Language,
		)
	})
	e.synthesizers = pools.New("synthesizers", cfg.Pools.SynthesizerIdle, func(sessionID string) (synth.Client, error) {
		return providers.BuildSynthesizer(
			cfg.Vendors.Synthesizer.Provider,
			cfg.Vendors.Synthesizer.Settings,
			sessionID,
		)
	})

	e.server = wsmedia.New(cfg.Media, func(callID string, emit turn.Emitter) (*media.Handler, error) {
		return media.NewHandler(
			media.Config{
				CallID:        callID,
				Language:      cfg.Call.Language,
				Greeting:      cfg.Call.Greeting,
				PendingEvents: cfg.Call.PendingEvents,
			},
			media.Deps{
				Recognizers:  e.recognizers,
				Synthesizers: e.synthesizers,
				Orchestrator: e.orch,
				Emitter:      emit,
				DTMF:         opts.DTMF,
			},
		), nil
	})

	if cfg.Twilio.AccountSID != "" {
		e.dialer = twilio.NewDialer(cfg.Twilio)
	}
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.ctx, e.cancel = context.WithCancel(ctx)

	if n := e.cfg.Pools.Prewarm; n > 0 {
		if err := e.recognizers.Prewarm(n); err != nil {
			slog.Warn("recognizer_prewarm_failed", "error", err.Error())
		}
		if err := e.synthesizers.Prewarm(n); err != nil {
			slog.Warn("synthesizer_prewarm_failed", "error", err.Error())
		}
	}
	return e.server.Start(e.ctx)
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.server.Stop()
}

// Drain stops accepting new calls and closes active sessions.
func (e *Engine) Drain() error {
	return e.server.Stop()
}

// ReadyFields reports the engine's endpoints for the startup log line.
func (e *Engine) ReadyFields() map[string]any {
	fields := e.server.ReadyFields()
	if e.dialer != nil {
		fields["voice_webhook"] = configutil.StringDefault(e.cfg.Twilio.VoicePath, "/voice")
	}
	return fields
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Server() *wsmedia.Server { return e.server }

func (e *Engine) History() *memory.Store { return e.history }

// Dialer is nil unless Twilio credentials are configured.
func (e *Engine) Dialer() *twilio.Dialer { return e.dialer }

func (e *Engine) Orchestrator() orchestrate.Orchestrator { return e.orch }

var _ runner.Drainer = (*Engine)(nil)
var _ runner.ReadyReporter = (*Engine)(nil)
