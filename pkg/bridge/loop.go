package bridge

import "sync"

// Loop is the task queue of one call's cooperative scheduler. The goroutine
// that drives the call (the turn processor) drains Tasks; every other
// execution context, including the recognition engine's callback thread,
// hands work across via Submit.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 16
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Submit schedules fn onto the owning scheduler. It never blocks: when the
// queue is full or the loop is closed the task is dropped and false returned.
func (l *Loop) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	default:
		return false
	}
}

// Tasks exposes the queue to the owning goroutine.
func (l *Loop) Tasks() <-chan func() { return l.tasks }

// Close marks the loop as no longer accepting work. Idempotent.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
