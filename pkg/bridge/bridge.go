// Package bridge is the only gateway between the recognition engine's
// execution context and the cooperative loop that owns a call. It holds
// the bounded event buffer and the mechanism for injecting barge-in
// cancellation into the loop from a foreign goroutine.
package bridge

import (
	"log/slog"
	"sync"

	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/speech"
)

// CancelTarget is the turn processor's cancellation surface.
type CancelTarget interface {
	CancelCurrentProcessing()
}

type Config struct {
	// Capacity bounds the pending event buffer. At the default of 1 the
	// turn processor sees at most the most recent unprocessed event.
	Capacity int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1
	}
	return c
}

type Bridge struct {
	events chan speech.Event
	log    *slog.Logger

	mu     sync.Mutex
	loop   *Loop
	target CancelTarget
	callID string
}

func New(cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		events: make(chan speech.Event, cfg.Capacity),
		log:    logging.NewComponentLogger(nil, "bridge"),
	}
}

// Enqueue inserts ev into the pending buffer without ever blocking the
// caller. A full buffer evicts its oldest entry first: a live call always
// prefers the freshest recognition state over a backlog. Eviction is a
// normal operation, not a fault.
func (b *Bridge) Enqueue(ev speech.Event) {
	for {
		select {
		case b.events <- ev:
			return
		default:
		}
		select {
		case old := <-b.events:
			b.log.Debug("bridge_event_evicted", "kind", string(old.Kind()))
		default:
		}
	}
}

// Events exposes the pending buffer to the turn processor.
func (b *Bridge) Events() <-chan speech.Event { return b.events }

// DrainPending discards all buffered events and reports how many were
// dropped. Used when barge-in makes the backlog stale.
func (b *Bridge) DrainPending() int {
	n := 0
	for {
		select {
		case <-b.events:
			n++
		default:
			return n
		}
	}
}

// BindProcessor binds the one turn processor that owns cancellation for this
// call. Must be called before any barge-in can be serviced.
func (b *Bridge) BindProcessor(target CancelTarget) {
	b.mu.Lock()
	b.target = target
	b.mu.Unlock()
}

// BindLoop binds the cooperative scheduler that owns this call, enabling
// safe cross-context submission.
func (b *Bridge) BindLoop(loop *Loop, callID string) {
	b.mu.Lock()
	b.loop = loop
	b.callID = callID
	b.mu.Unlock()
}

// SignalBargeIn is invoked from the recognition engine's context when the
// caller speaks over the agent. It schedules cancellation of the in-flight
// turn, then cb, onto the owning loop. Before BindLoop it is a no-op: very
// early barge-in has nothing to interrupt.
func (b *Bridge) SignalBargeIn(cb func()) {
	b.mu.Lock()
	loop := b.loop
	target := b.target
	callID := b.callID
	b.mu.Unlock()

	if loop == nil {
		b.log.Debug("bridge_signal_dropped", "reason", "no_loop")
		return
	}
	ok := loop.Submit(func() {
		if target != nil {
			target.CancelCurrentProcessing()
		}
		if cb != nil {
			cb()
		}
	})
	if !ok {
		b.log.Warn("bridge_signal_not_scheduled", "call_id", callID)
	}
}
