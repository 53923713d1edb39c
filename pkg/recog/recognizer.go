package recog

import "context"

// Handler receives engine callbacks. Implementations must tolerate being
// invoked from the engine's own goroutine at any time between Start and Stop.
type Handler interface {
	OnPartial(text, language string)
	OnFinal(text, language string)
	OnFault(err error)
}

// Client is the contract for any continuous-recognition vendor. The driver
// treats acquired clients opaquely: start, stop, feed, callbacks.
type Client interface {
	Name() string
	Start(ctx context.Context, h Handler) error
	Stop() error
	WriteAudio(p []byte) error
}

// Pool hands out recognizer clients per call session.
type Pool interface {
	AcquireForSession(sessionID string) (Client, string, error)
	ReleaseForSession(sessionID string, client Client) bool
}
