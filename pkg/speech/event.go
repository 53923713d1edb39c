package speech

import (
	"fmt"
	"time"
)

// Kind classifies a speech event moving between the recognition side and the
// turn-processing side of a call.
type Kind string

const (
	// KindPartial is an unstable, in-progress recognition result. It is never
	// forwarded to the orchestrator; it only drives barge-in detection.
	KindPartial Kind = "partial"
	// KindFinal is a completed recognition result for one utterance.
	KindFinal Kind = "final"
	// KindGreeting is system speech injected when the call opens.
	KindGreeting Kind = "greeting"
	// KindAnnouncement is system speech injected mid-call.
	KindAnnouncement Kind = "announcement"
	// KindFault carries a recognition-engine error into the turn loop.
	KindFault Kind = "fault"
)

// DefaultLanguage is used when the recognizer reports no locale.
const DefaultLanguage = "en-US"

func (k Kind) Valid() bool {
	switch k {
	case KindPartial, KindFinal, KindGreeting, KindAnnouncement, KindFault:
		return true
	}
	return false
}

// Terminal reports whether an event of this kind triggers an orchestrator turn.
func (k Kind) Terminal() bool {
	switch k {
	case KindFinal, KindGreeting, KindAnnouncement:
		return true
	}
	return false
}

// Event is the unit exchanged across the bridge. Immutable after creation.
type Event struct {
	kind      Kind
	text      string
	language  string
	createdAt time.Time
}

// NewEvent validates and builds an event. Text may be empty only for KindFault.
func NewEvent(kind Kind, text, language string) (Event, error) {
	if !kind.Valid() {
		return Event{}, fmt.Errorf("speech: unknown event kind %q", kind)
	}
	if text == "" && kind != KindFault {
		return Event{}, fmt.Errorf("speech: %s event requires text", kind)
	}
	if language == "" {
		language = DefaultLanguage
	}
	return Event{
		kind:      kind,
		text:      text,
		language:  language,
		createdAt: time.Now(),
	}, nil
}

// NewFaultEvent wraps an engine error as an event. A nil err yields an empty
// fault, which the turn processor logs and discards like any other.
func NewFaultEvent(err error, language string) Event {
	text := ""
	if err != nil {
		text = err.Error()
	}
	if language == "" {
		language = DefaultLanguage
	}
	return Event{
		kind:      KindFault,
		text:      text,
		language:  language,
		createdAt: time.Now(),
	}
}

func (e Event) Kind() Kind           { return e.kind }
func (e Event) Text() string         { return e.text }
func (e Event) Language() string     { return e.language }
func (e Event) CreatedAt() time.Time { return e.createdAt }

// Age measures how long the event has been pending, used for
// recognition-to-response latency reporting.
func (e Event) Age() time.Duration { return time.Since(e.createdAt) }
