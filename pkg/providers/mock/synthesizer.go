package mock

import (
	"context"
	"strings"
)

type SynthesizerConfig struct {
	// ChunkSize splits the rendered audio into fixed-size chunks so playback
	// code sees a realistic multi-chunk stream.
	ChunkSize int
}

// Synthesizer renders text as its own bytes, one chunk per write. Useful for
// asserting what would have been spoken.
type Synthesizer struct {
	cfg SynthesizerConfig
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 32
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (<-chan []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		data := []byte(strings.TrimSpace(text))
		for len(data) > 0 {
			n := s.cfg.ChunkSize
			if n > len(data) {
				n = len(data)
			}
			chunk := make([]byte, n)
			copy(chunk, data[:n])
			data = data[n:]
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
