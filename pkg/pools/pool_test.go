package pools

import (
	"errors"
	"testing"
)

type fakeClient struct {
	id     int
	closed bool
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestAcquireTiers(t *testing.T) {
	built := 0
	p := New("recognizer", 2, func(sessionID string) (*fakeClient, error) {
		built++
		return &fakeClient{id: built}, nil
	})
	if err := p.Prewarm(1); err != nil {
		t.Fatalf("prewarm: %v", err)
	}

	_, tier, err := p.AcquireForSession("s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if tier != TierReserved {
		t.Fatalf("expected reserved tier, got %s", tier)
	}

	_, tier, err = p.AcquireForSession("s2")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if tier != TierOverflow {
		t.Fatalf("expected overflow tier, got %s", tier)
	}
	if p.Leases() != 2 {
		t.Fatalf("expected 2 leases, got %d", p.Leases())
	}
}

func TestAcquireIsIdempotentPerSession(t *testing.T) {
	p := New("recognizer", 1, func(sessionID string) (*fakeClient, error) {
		return &fakeClient{}, nil
	})
	first, _, err := p.AcquireForSession("s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, _, err := p.AcquireForSession("s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first != second {
		t.Fatalf("expected same client for same session")
	}
	if p.Leases() != 1 {
		t.Fatalf("expected single lease, got %d", p.Leases())
	}
}

func TestReleaseUnknownSession(t *testing.T) {
	p := New("synth", 1, func(sessionID string) (*fakeClient, error) {
		return &fakeClient{}, nil
	})
	if p.ReleaseForSession("nope", &fakeClient{}) {
		t.Fatalf("expected release of unknown session to report false")
	}
}

func TestReleaseReturnsToIdleOrCloses(t *testing.T) {
	p := New("synth", 1, func(sessionID string) (*fakeClient, error) {
		return &fakeClient{}, nil
	})
	a, _, _ := p.AcquireForSession("s1")
	b, _, _ := p.AcquireForSession("s2")

	if !p.ReleaseForSession("s1", a) {
		t.Fatalf("expected release to succeed")
	}
	if a.closed {
		t.Fatalf("expected first client kept idle")
	}
	if !p.ReleaseForSession("s2", b) {
		t.Fatalf("expected release to succeed")
	}
	if !b.closed {
		t.Fatalf("expected surplus client closed")
	}

	// Idle client is reused at reserved tier.
	got, tier, err := p.AcquireForSession("s3")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got != a || tier != TierReserved {
		t.Fatalf("expected idle client reuse at reserved tier")
	}
}

func TestFactoryErrorSurfaces(t *testing.T) {
	p := New("recognizer", 0, func(sessionID string) (*fakeClient, error) {
		return nil, errors.New("dial failed")
	})
	if _, _, err := p.AcquireForSession("s1"); err == nil {
		t.Fatalf("expected factory error to surface")
	}
}
