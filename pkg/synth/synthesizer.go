// Package synth defines the speech-synthesis client contract consumed by the
// turn processor's playback path.
package synth

import "context"

// Client streams synthesized PCM16LE audio for one utterance. The returned
// channel is closed when synthesis completes or ctx is canceled; consumers
// must drain the channel or cancel ctx so the producer can exit.
type Client interface {
	Name() string
	Synthesize(ctx context.Context, text, language string) (<-chan []byte, error)
}

// Pool hands out synthesizer clients per call session.
type Pool interface {
	AcquireForSession(sessionID string) (Client, string, error)
	ReleaseForSession(sessionID string, client Client) bool
}
