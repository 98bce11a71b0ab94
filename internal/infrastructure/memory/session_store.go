package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// sessionEntry holds the account ID and expiration time for a session
type sessionEntry struct {
	accountID string
	expiresAt time.Time
}

// SessionStore is the in-process fallback used when redis is unreachable.
// Sessions do not survive a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

var _ auth.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", domain.ErrMissingField("account_id")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	id, err := newOpaqueToken(32)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.sessions {
		if !now.Before(v.expiresAt) {
			delete(s.sessions, k)
		}
	}
	s.sessions[id] = sessionEntry{accountID: accountID, expiresAt: now.Add(ttl)}
	return id, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return "", domain.ErrSessionNotFound()
	}
	if !s.now().Before(entry.expiresAt) {
		_ = s.Delete(ctx, sessionID)
		return "", domain.ErrSessionNotFound()
	}
	return entry.accountID, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID) // idempotent
	return nil
}
