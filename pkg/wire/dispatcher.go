package wire

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxline/voxline/pkg/logging"
)

// AudioSink is the recognition driver surface the dispatcher feeds.
type AudioSink interface {
	Arm(ctx context.Context) error
	Feed(p []byte) error
}

// DTMFHandler receives keypad digits without affecting the speech pipeline.
type DTMFHandler func(digits string)

// Dispatcher parses inbound frames and routes them. The first AudioMetadata
// frame arms the recognizer and triggers the one-time greeting; a single bad
// frame never tears the connection down.
type Dispatcher struct {
	sink  AudioSink
	greet func() error
	dtmf  DTMFHandler
	log   *slog.Logger

	mu    sync.Mutex
	armed bool
}

func NewDispatcher(callID string, sink AudioSink, greet func() error, dtmf DTMFHandler) *Dispatcher {
	return &Dispatcher{
		sink:  sink,
		greet: greet,
		dtmf:  dtmf,
		log:   logging.NewComponentLogger(nil, "dispatcher").With("call_id", callID),
	}
}

// HandleMessage processes one inbound wire message. Protocol errors are
// logged and dropped.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw []byte) {
	f, err := Decode(raw)
	if err != nil {
		d.log.Warn("frame_dropped", "error", err.Error())
		return
	}
	switch f.Kind {
	case KindAudioMetadata:
		d.handleMetadata(ctx, f)
	case KindAudioData:
		d.handleAudio(f)
	case KindDtmfData:
		if d.dtmf != nil {
			d.dtmf(f.Data)
		}
	default:
		d.log.Debug("frame_ignored", "kind", string(f.Kind))
	}
}

func (d *Dispatcher) handleMetadata(ctx context.Context, f Frame) {
	d.mu.Lock()
	if d.armed {
		d.mu.Unlock()
		d.log.Debug("metadata_repeated", "subscription_id", f.SubscriptionID)
		return
	}
	d.mu.Unlock()

	if err := d.sink.Arm(ctx); err != nil {
		// Leave unarmed so a later metadata frame can retry.
		d.log.Error("arm_failed", "error", err.Error())
		return
	}
	d.mu.Lock()
	d.armed = true
	d.mu.Unlock()
	d.log.Info("call_armed", "subscription_id", f.SubscriptionID)

	if d.greet != nil {
		if err := d.greet(); err != nil {
			d.log.Warn("greeting_not_queued", "error", err.Error())
		}
	}
}

func (d *Dispatcher) handleAudio(f Frame) {
	if f.Silent {
		return
	}
	payload, err := f.AudioPayload()
	if err != nil {
		d.log.Warn("audio_frame_dropped", "error", err.Error())
		return
	}
	if len(payload) == 0 {
		return
	}
	if err := d.sink.Feed(payload); err != nil {
		d.log.Warn("audio_feed_error", "error", err.Error())
	}
}

// Armed reports whether the one-time call setup has happened.
func (d *Dispatcher) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}
