// Package pools manages shared recognizer and synthesizer clients with a
// strict acquire-before-use, release-on-stop discipline per call session.
package pools

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
)

// Tier reports where an acquired client came from.
const (
	TierReserved = "reserved"
	TierOverflow = "overflow"
)

// Factory builds a new client when the idle set is empty.
type Factory[T any] func(sessionID string) (T, error)

type lease[T any] struct {
	id     string
	client T
	tier   string
}

// Pool hands out one client per session. Released clients return to the idle
// set up to maxIdle; surplus clients are closed when they implement io.Closer.
type Pool[T any] struct {
	mu      sync.Mutex
	idle    []T
	leases  map[string]lease[T]
	factory Factory[T]
	maxIdle int
	log     *slog.Logger
}

func New[T any](name string, maxIdle int, factory Factory[T]) *Pool[T] {
	if maxIdle < 0 {
		maxIdle = 0
	}
	return &Pool[T]{
		leases:  make(map[string]lease[T]),
		factory: factory,
		maxIdle: maxIdle,
		log:     logging.NewComponentLogger(nil, name+"_pool"),
	}
}

// Prewarm fills the idle set so early calls acquire at TierReserved.
func (p *Pool[T]) Prewarm(n int) error {
	for i := 0; i < n; i++ {
		client, err := p.factory("")
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonPoolExhausted)
		}
		p.mu.Lock()
		p.idle = append(p.idle, client)
		p.mu.Unlock()
	}
	return nil
}

// AcquireForSession hands out the session's existing client when one is
// leased, otherwise an idle client (TierReserved), otherwise a fresh one
// from the factory (TierOverflow).
func (p *Pool[T]) AcquireForSession(sessionID string) (T, string, error) {
	p.mu.Lock()
	if existing, ok := p.leases[sessionID]; ok {
		p.mu.Unlock()
		return existing.client, existing.tier, nil
	}
	if n := len(p.idle); n > 0 {
		client := p.idle[n-1]
		p.idle = p.idle[:n-1]
		l := lease[T]{id: uuid.NewString(), client: client, tier: TierReserved}
		p.leases[sessionID] = l
		p.mu.Unlock()
		p.log.Debug("pool_acquired", "session_id", sessionID, "lease_id", l.id, "tier", l.tier)
		return client, TierReserved, nil
	}
	p.mu.Unlock()

	var zero T
	if p.factory == nil {
		return zero, "", errorsx.New(errorsx.ReasonPoolExhausted, "pool empty and no factory configured")
	}
	client, err := p.factory(sessionID)
	if err != nil {
		return zero, "", errorsx.Wrap(err, errorsx.ReasonPoolExhausted)
	}
	l := lease[T]{id: uuid.NewString(), client: client, tier: TierOverflow}
	p.mu.Lock()
	p.leases[sessionID] = l
	p.mu.Unlock()
	p.log.Debug("pool_acquired", "session_id", sessionID, "lease_id", l.id, "tier", l.tier)
	return client, TierOverflow, nil
}

// ReleaseForSession returns the session's client. It reports false when the
// session holds no lease; release is otherwise best-effort and never fails.
func (p *Pool[T]) ReleaseForSession(sessionID string, client T) bool {
	p.mu.Lock()
	l, ok := p.leases[sessionID]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.leases, sessionID)
	kept := false
	if len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, client)
		kept = true
	}
	p.mu.Unlock()

	if !kept {
		closeQuietly(client, p.log, sessionID)
	}
	p.log.Debug("pool_released", "session_id", sessionID, "lease_id", l.id, "kept_idle", kept)
	return true
}

// Leases reports how many sessions currently hold a client.
func (p *Pool[T]) Leases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leases)
}

func closeQuietly[T any](client T, log *slog.Logger, sessionID string) {
	if closer, ok := any(client).(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn("pool_client_close_error", "session_id", sessionID, "error", err.Error())
		}
	}
}
