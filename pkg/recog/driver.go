// Package recog owns the lifecycle of one recognizer instance for a call and
// translates engine callbacks into speech events pushed through the bridge.
package recog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxline/voxline/pkg/bridge"
	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/speech"
)

// ErrNotArmed reports audio fed before Arm or after Disarm. This is a wiring
// bug, not a transient condition, and propagates loudly.
var ErrNotArmed = errorsx.New(errorsx.ReasonRecognizerFeed, "recognizer not armed")

type DriverConfig struct {
	CallID   string
	Language string
}

type Driver struct {
	cfg    DriverConfig
	client Client
	br     *bridge.Bridge
	log    *slog.Logger

	// speaking reports whether the agent is currently playing audio;
	// bargeIn runs on the call loop after cancellation.
	speaking func() bool
	bargeIn  func()

	mu       sync.Mutex
	armed    bool
	disarmed bool
}

func NewDriver(cfg DriverConfig, client Client, br *bridge.Bridge) *Driver {
	if cfg.Language == "" {
		cfg.Language = speech.DefaultLanguage
	}
	return &Driver{
		cfg:    cfg,
		client: client,
		br:     br,
		log:    logging.NewComponentLogger(nil, "recog_driver").With("call_id", cfg.CallID),
	}
}

// SetSpeakingProbe wires the agent-speaking flag used for barge-in detection.
func (d *Driver) SetSpeakingProbe(fn func() bool) {
	d.mu.Lock()
	d.speaking = fn
	d.mu.Unlock()
}

// SetBargeInCallback wires the action scheduled after barge-in cancellation,
// typically halting client-side playback.
func (d *Driver) SetBargeInCallback(fn func()) {
	d.mu.Lock()
	d.bargeIn = fn
	d.mu.Unlock()
}

// Arm starts continuous recognition. Idempotent: only the first call creates
// the stream; repeats are no-ops so duplicate metadata frames cannot re-arm
// the pipeline.
func (d *Driver) Arm(ctx context.Context) error {
	d.mu.Lock()
	if d.armed {
		d.mu.Unlock()
		return nil
	}
	if d.disarmed {
		d.mu.Unlock()
		return errorsx.New(errorsx.ReasonRecognizerConnect, "recognizer already disarmed")
	}
	d.mu.Unlock()

	if err := d.client.Start(ctx, d); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRecognizerConnect)
	}
	d.mu.Lock()
	d.armed = true
	d.mu.Unlock()
	d.log.Info("recognizer_armed", "recognizer", d.client.Name())
	return nil
}

// Feed writes raw audio to the engine's input stream.
func (d *Driver) Feed(p []byte) error {
	d.mu.Lock()
	ready := d.armed && !d.disarmed
	d.mu.Unlock()
	if !ready {
		return ErrNotArmed
	}
	if err := d.client.WriteAudio(p); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRecognizerFeed)
	}
	return nil
}

// Disarm stops recognition and releases the stream. Idempotent, and safe on
// a never-armed driver.
func (d *Driver) Disarm() error {
	d.mu.Lock()
	if d.disarmed {
		d.mu.Unlock()
		return nil
	}
	wasArmed := d.armed
	d.disarmed = true
	d.mu.Unlock()

	if !wasArmed {
		return nil
	}
	if err := d.client.Stop(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRecognizerStop)
	}
	d.log.Info("recognizer_disarmed")
	return nil
}

// OnPartial runs on the engine's goroutine. Besides buffering the partial,
// it fires the barge-in signal when the agent is mid-playback.
func (d *Driver) OnPartial(text, language string) {
	ev, err := speech.NewEvent(speech.KindPartial, text, d.language(language))
	if err != nil {
		return
	}
	d.br.Enqueue(ev)

	d.mu.Lock()
	speaking := d.speaking
	cb := d.bargeIn
	d.mu.Unlock()
	if speaking != nil && speaking() {
		d.log.Debug("barge_in_detected", "partial", text)
		d.br.SignalBargeIn(cb)
	}
}

func (d *Driver) OnFinal(text, language string) {
	ev, err := speech.NewEvent(speech.KindFinal, text, d.language(language))
	if err != nil {
		return
	}
	d.br.Enqueue(ev)
}

// OnFault surfaces an engine error into the turn loop. A recognition fault
// never terminates the call.
func (d *Driver) OnFault(err error) {
	d.log.Warn("recognizer_fault", "reason_code", string(errorsx.ReasonRecognizerFault), "error", errString(err))
	d.br.Enqueue(speech.NewFaultEvent(err, d.cfg.Language))
}

func (d *Driver) language(detected string) string {
	if detected != "" {
		return detected
	}
	return d.cfg.Language
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ Handler = (*Driver)(nil)
