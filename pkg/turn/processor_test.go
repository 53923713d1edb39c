package turn

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxline/voxline/pkg/bridge"
	"github.com/voxline/voxline/pkg/orchestrate"
	"github.com/voxline/voxline/pkg/speech"
)

type captureEmitter struct {
	mu    sync.Mutex
	audio [][]byte
	stops int
}

func (c *captureEmitter) EmitAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = append(c.audio, append([]byte(nil), pcm...))
	return nil
}

func (c *captureEmitter) EmitStopAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *captureEmitter) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *captureEmitter) audioCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.audio)
}

type chunkSynth struct{}

func (chunkSynth) Name() string { return "chunk_synth" }

func (chunkSynth) Synthesize(ctx context.Context, text, language string) (<-chan []byte, error) {
	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		for _, word := range strings.Fields(text) {
			select {
			case <-ctx.Done():
				return
			case out <- []byte(word):
			}
		}
	}()
	return out, nil
}

func newTestProcessor(orch orchestrate.Orchestrator) (*Processor, *bridge.Bridge, *bridge.Loop, *captureEmitter) {
	br := bridge.New(bridge.Config{})
	loop := bridge.NewLoop(8)
	emit := &captureEmitter{}
	p := NewProcessor(Config{CallID: "c1", Language: "en-US"}, br, loop, orch, chunkSynth{}, emit)
	br.BindProcessor(p)
	br.BindLoop(loop, "c1")
	return p, br, loop, emit
}

func enqueue(t *testing.T, br *bridge.Bridge, kind speech.Kind, text string) {
	t.Helper()
	ev, err := speech.NewEvent(kind, text, "")
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	br.Enqueue(ev)
}

func TestFinalEventInvokesOrchestratorOnce(t *testing.T) {
	var mu sync.Mutex
	var got []string
	orch := orchestrate.Func(func(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
		mu.Lock()
		got = append(got, req.Text)
		mu.Unlock()
		return orchestrate.Response{Text: "sure thing"}, nil
	})
	p, br, _, emit := newTestProcessor(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	enqueue(t, br, speech.KindFinal, "check my balance")

	deadline := time.After(time.Second)
	for emit.audioCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected response audio emitted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "check my balance" {
		t.Fatalf("expected exactly one invocation with the final text, got %v", got)
	}
}

func TestPartialAndFaultDoNotInvokeOrchestrator(t *testing.T) {
	invoked := make(chan struct{}, 1)
	orch := orchestrate.Func(func(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
		invoked <- struct{}{}
		return orchestrate.Response{}, nil
	})
	p, br, _, _ := newTestProcessor(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	enqueue(t, br, speech.KindPartial, "che")
	br.Enqueue(speech.NewFaultEvent(nil, ""))

	select {
	case <-invoked:
		t.Fatalf("expected no orchestrator invocation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBargeInCancelsInFlightTurn(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})
	orch := orchestrate.Func(func(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
		close(started)
		<-ctx.Done()
		close(canceled)
		return orchestrate.Response{}, ctx.Err()
	})
	p, br, _, emit := newTestProcessor(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	enqueue(t, br, speech.KindFinal, "tell me a long story")
	<-started

	// A stale final is still pending when the caller barges in.
	enqueue(t, br, speech.KindFinal, "stale")
	br.SignalBargeIn(func() { _ = emit.EmitStopAudio() })

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatalf("expected in-flight turn canceled")
	}

	deadline := time.After(time.Second)
	for p.InFlight() {
		select {
		case <-deadline:
			t.Fatalf("expected in-flight handle cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}
	for emit.stopCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected StopAudio emitted after cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}
	select {
	case ev := <-br.Events():
		t.Fatalf("expected pending events cleared, got %q", ev.Text())
	default:
	}
}

func TestCancelWhenIdleIsNoOp(t *testing.T) {
	p, _, _, _ := newTestProcessor(orchestrate.Func(func(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
		return orchestrate.Response{}, nil
	}))
	p.CancelCurrentProcessing()
	p.CancelCurrentProcessing()
	if p.InFlight() {
		t.Fatalf("expected no in-flight handle")
	}
}

func TestSpeakingFlagDuringPlayback(t *testing.T) {
	release := make(chan struct{})
	orch := orchestrate.Func(func(ctx context.Context, req orchestrate.Request) (orchestrate.Response, error) {
		return orchestrate.Response{Text: "one two three"}, nil
	})
	br := bridge.New(bridge.Config{})
	loop := bridge.NewLoop(8)
	emit := &blockingEmitter{release: release, seen: make(chan struct{}, 1)}
	p := NewProcessor(Config{CallID: "c1"}, br, loop, orch, chunkSynth{}, emit)
	br.BindProcessor(p)
	br.BindLoop(loop, "c1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	enqueue(t, br, speech.KindGreeting, "hello there caller")
	<-emit.seen
	if !p.AgentSpeaking() {
		t.Fatalf("expected speaking flag set during playback")
	}
	close(release)

	deadline := time.After(time.Second)
	for p.AgentSpeaking() {
		select {
		case <-deadline:
			t.Fatalf("expected speaking flag cleared after playback")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type blockingEmitter struct {
	release chan struct{}
	seen    chan struct{}
	once    sync.Once
}

func (b *blockingEmitter) EmitAudio(pcm []byte) error {
	b.once.Do(func() { b.seen <- struct{}{} })
	<-b.release
	return nil
}

func (b *blockingEmitter) EmitStopAudio() error { return nil }
