// Package memory keeps the append-only turn history for active calls.
// The orchestrator reads it to ground its responses; the media bridge
// never mutates entries after they are appended.
package memory

import (
	"sync"
	"time"
)

const (
	RoleCaller = "caller"
	RoleAgent  = "agent"
)

type Entry struct {
	Role     string
	Text     string
	Language string
	At       time.Time
}

type Store struct {
	mu         sync.RWMutex
	turns      map[string][]Entry
	maxPerCall int
}

// NewStore bounds history per call; entries beyond the bound age out oldest
// first. maxPerCall <= 0 selects the default of 32.
func NewStore(maxPerCall int) *Store {
	if maxPerCall <= 0 {
		maxPerCall = 32
	}
	return &Store{
		turns:      make(map[string][]Entry),
		maxPerCall: maxPerCall,
	}
}

func (s *Store) Append(callID string, e Entry) {
	if callID == "" || e.Text == "" {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.turns[callID], e)
	if len(history) > s.maxPerCall {
		history = history[len(history)-s.maxPerCall:]
	}
	s.turns[callID] = history
}

// History returns a copy of the call's turns in append order.
func (s *Store) History(callID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.turns[callID]
	if len(history) == 0 {
		return nil
	}
	out := make([]Entry, len(history))
	copy(out, history)
	return out
}

// Forget drops a call's history once the call ends.
func (s *Store) Forget(callID string) {
	s.mu.Lock()
	delete(s.turns, callID)
	s.mu.Unlock()
}
