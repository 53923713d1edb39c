package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type readyDrainer struct {
	drained atomic.Bool
	fields  map[string]any
}

func (d *readyDrainer) Drain() error {
	d.drained.Store(true)
	return nil
}

func (d *readyDrainer) ReadyFields() map[string]any { return d.fields }

func TestLifecycleRunnerRunThenStop(t *testing.T) {
	d := &readyDrainer{fields: map[string]any{"media_url": "ws://localhost:8080/media"}}
	var started, stopped atomic.Bool
	lr := NewLifecycleRunner(d, Hooks{
		OnStart: func() { started.Store(true) },
		OnStop:  func() { stopped.Store(true) },
	}, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- lr.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for lr.State() != StateRunning {
		select {
		case <-deadline:
			t.Fatalf("runner never reached running state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := lr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-deadline:
		t.Fatalf("run did not return after stop")
	}

	if !started.Load() || !stopped.Load() {
		t.Fatalf("expected both hooks to fire, started=%v stopped=%v", started.Load(), stopped.Load())
	}
	if !d.drained.Load() {
		t.Fatalf("expected drainer invoked during stop")
	}
	if got := lr.State(); got != StateStopped {
		t.Fatalf("expected stopped state, got %d", got)
	}
	if err := lr.Run(context.Background()); err == nil {
		t.Fatalf("expected second run to be rejected")
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	lr := NewLifecycleRunner(drainFunc(func() error {
		<-block
		return nil
	}), Hooks{}, 20*time.Millisecond)

	if err := lr.Stop(); err == nil {
		t.Fatalf("expected drain timeout error")
	}
	if got := lr.State(); got != StateStopped {
		t.Fatalf("expected stopped state after timeout, got %d", got)
	}
}

type drainFunc func() error

func (f drainFunc) Drain() error { return f() }
