package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSessionManager(ttl time.Duration) (*SessionManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)}
	m := NewSessionManager(ttl, time.Hour)
	m.now = clock.Now
	return m, clock
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m, clock := newTestSessionManager(time.Hour)

	s := m.Create("alice")
	if s.Token == "" {
		t.Fatal("expected a token")
	}
	if s.Username != "alice" {
		t.Errorf("Username = %q, want alice", s.Username)
	}
	if !s.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want created + ttl", s.ExpiresAt)
	}

	got, err := m.Get(s.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Errorf("Get = %+v, want %+v", got, s)
	}
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	m, _ := newTestSessionManager(time.Hour)

	a := m.Create("alice")
	b := m.Create("alice")
	if a.Token == b.Token {
		t.Error("sessions for the same user must get distinct tokens")
	}
	if m.ActiveCount() != 2 {
		t.Errorf("ActiveCount = %d, want 2", m.ActiveCount())
	}
}

func TestSessionManager_GetUnknown(t *testing.T) {
	m, _ := newTestSessionManager(time.Hour)

	if _, err := m.Get("nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get(unknown) = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionManager_GetExpired(t *testing.T) {
	m, clock := newTestSessionManager(time.Hour)

	s := m.Create("alice")
	clock.Advance(time.Hour)

	if _, err := m.Get(s.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get(expired) = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionManager_Revoke(t *testing.T) {
	m, _ := newTestSessionManager(time.Hour)

	s := m.Create("alice")
	other := m.Create("bob")
	m.Revoke(s.Token)
	m.Revoke("unknown")

	if _, err := m.Get(s.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get(revoked) = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.Get(other.Token); err != nil {
		t.Errorf("other session should survive, got %v", err)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", m.ActiveCount())
	}
}

func TestSessionManager_TickRemovesOnlyExpired(t *testing.T) {
	m, clock := newTestSessionManager(time.Hour)

	first := m.Create("alice")
	clock.Advance(30 * time.Minute)
	second := m.Create("bob")
	clock.Advance(30 * time.Minute)

	if n := m.tick(clock.Now()); n != 1 {
		t.Errorf("tick removed %d, want 1", n)
	}
	if _, err := m.Get(first.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("first session should be swept, got %v", err)
	}
	if _, err := m.Get(second.Token); err != nil {
		t.Errorf("second session should survive, got %v", err)
	}

	m.mu.Lock()
	if len(m.byExpiry) != 1 || m.byExpiry[0].Token != second.Token {
		t.Errorf("expiry queue = %v, want only the second session", m.byExpiry)
	}
	m.mu.Unlock()
}

func TestSessionManager_ExpiryQueueSorted(t *testing.T) {
	m, clock := newTestSessionManager(time.Hour)

	for range 5 {
		m.Create("alice")
		clock.Advance(time.Minute)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 1; i < len(m.byExpiry); i++ {
		if m.byExpiry[i].ExpiresAt.Before(m.byExpiry[i-1].ExpiresAt) {
			t.Fatalf("expiry queue out of order at %d", i)
		}
	}
}

func TestSessionManager_StartSweeps(t *testing.T) {
	m := NewSessionManager(time.Millisecond, 5*time.Millisecond)
	m.Create("alice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for m.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not remove the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
