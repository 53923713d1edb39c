package speech

import "testing"

func TestNewEventValidation(t *testing.T) {
	if _, err := NewEvent(Kind("bogus"), "hi", ""); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := NewEvent(KindFinal, "", ""); err == nil {
		t.Fatalf("expected error for empty final text")
	}
	if _, err := NewEvent(KindGreeting, "", ""); err == nil {
		t.Fatalf("expected error for empty greeting text")
	}
	ev, err := NewEvent(KindFinal, "check my balance", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Language() != DefaultLanguage {
		t.Fatalf("expected default language, got %s", ev.Language())
	}
	if ev.CreatedAt().IsZero() {
		t.Fatalf("expected created timestamp")
	}
}

func TestFaultEventAllowsEmptyText(t *testing.T) {
	ev := NewFaultEvent(nil, "")
	if ev.Kind() != KindFault {
		t.Fatalf("expected fault kind, got %s", ev.Kind())
	}
	if ev.Text() != "" {
		t.Fatalf("expected empty text, got %q", ev.Text())
	}
}

func TestTerminalKinds(t *testing.T) {
	for _, k := range []Kind{KindFinal, KindGreeting, KindAnnouncement} {
		if !k.Terminal() {
			t.Fatalf("expected %s to be terminal", k)
		}
	}
	for _, k := range []Kind{KindPartial, KindFault} {
		if k.Terminal() {
			t.Fatalf("expected %s to be non-terminal", k)
		}
	}
}
