// Package mock provides in-process providers for local development and
// example programs. They never open network connections.
package mock

import (
	"context"
	"sync"

	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/recog"
	"github.com/voxline/voxline/pkg/speech"
)

type RecognizerConfig struct {
	// Transcript is emitted as a final result after AudioThreshold bytes of
	// audio have been written.
	Transcript     string
	Interim        string
	Language       string
	AudioThreshold int
}

// Recognizer pretends to transcribe: once enough audio arrives it emits one
// interim and one final transcript through the registered handler.
type Recognizer struct {
	cfg     RecognizerConfig
	mu      sync.Mutex
	handler recog.Handler
	started bool
	emitted bool
	fed     int
}

func NewRecognizer(cfg RecognizerConfig) *Recognizer {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	if cfg.Language == "" {
		cfg.Language = speech.DefaultLanguage
	}
	if cfg.AudioThreshold == 0 {
		cfg.AudioThreshold = 1
	}
	return &Recognizer{cfg: cfg}
}

func (r *Recognizer) Name() string { return "mock" }

func (r *Recognizer) Start(ctx context.Context, h recog.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	r.started = true
	r.emitted = false
	r.fed = 0
	return nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	r.handler = nil
	return nil
}

func (r *Recognizer) WriteAudio(p []byte) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return errorsx.New(errorsx.ReasonRecognizerFeed, "recognizer not started")
	}
	r.fed += len(p)
	ready := !r.emitted && r.fed >= r.cfg.AudioThreshold
	if ready {
		r.emitted = true
	}
	h := r.handler
	r.mu.Unlock()

	if ready && h != nil {
		if r.cfg.Interim != "" {
			h.OnPartial(r.cfg.Interim, r.cfg.Language)
		}
		h.OnFinal(r.cfg.Transcript, r.cfg.Language)
	}
	return nil
}

var _ recog.Client = (*Recognizer)(nil)
