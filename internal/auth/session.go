package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/google/uuid"
)

// SessionManager issues bearer tokens and expires them after a fixed TTL.
type SessionManager struct {
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Session
	byExpiry []*domain.Session // sorted by ExpiresAt ASC
}

// NewSessionManager creates a manager whose sessions live for ttl and whose
// sweeper runs every interval once started.
func NewSessionManager(ttl, interval time.Duration) *SessionManager {
	return &SessionManager{
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
		byExpiry: make([]*domain.Session, 0),
	}
}

// Create opens a new session for username.
func (m *SessionManager) Create(username string) domain.Session {
	now := m.now()
	s := &domain.Session{
		Token:     uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Token] = s
	idx := sort.Search(len(m.byExpiry), func(i int) bool {
		return m.byExpiry[i].ExpiresAt.After(s.ExpiresAt)
	})
	m.byExpiry = append(m.byExpiry, nil)
	copy(m.byExpiry[idx+1:], m.byExpiry[idx:])
	m.byExpiry[idx] = s
	return *s
}

// Get resolves token to its session. Unknown and expired tokens both return
// domain.ErrSessionNotFound.
func (m *SessionManager) Get(token string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || s.Expired(m.now()) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *s, nil
}

// Revoke ends a session. Revoking an unknown token is a no-op.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[token]; !ok {
		return
	}
	delete(m.sessions, token)
	for i, s := range m.byExpiry {
		if s.Token == token {
			m.byExpiry = append(m.byExpiry[:i], m.byExpiry[i+1:]...)
			return
		}
	}
}

// Start launches the sweeper. It stops when ctx is cancelled.
func (m *SessionManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				m.tick(t)
			}
		}
	}()
}

// tick drops every session with ExpiresAt <= now from the front of the
// expiry queue.
func (m *SessionManager) tick(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := 0
	for cutoff < len(m.byExpiry) && m.byExpiry[cutoff].Expired(now) {
		delete(m.sessions, m.byExpiry[cutoff].Token)
		cutoff++
	}
	if cutoff > 0 {
		m.byExpiry = m.byExpiry[cutoff:]
	}
	return cutoff
}

// ActiveCount returns the number of sessions not yet swept.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
