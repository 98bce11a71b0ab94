package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

type OAuthStateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
	ttl    time.Duration
	now    func() time.Time
}

type stateEntry struct {
	data      auth.OAuthState
	expiresAt time.Time
}

var _ auth.OAuthStateStore = (*OAuthStateStore)(nil)

func NewOAuthStateStore(ttl time.Duration) *OAuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{
		states: make(map[string]stateEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *OAuthStateStore) Create(ctx context.Context, state auth.OAuthState) (string, error) {
	token, err := newOpaqueToken(32)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// cleanup expired
	now := s.now()
	for k, v := range s.states {
		if now.After(v.expiresAt) {
			delete(s.states, k)
		}
	}

	s.states[token] = stateEntry{data: state, expiresAt: now.Add(s.ttl)}
	return token, nil
}

func (s *OAuthStateStore) Consume(ctx context.Context, token string) (auth.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[token]
	delete(s.states, token) // one-time use
	if !ok || s.now().After(entry.expiresAt) {
		return auth.OAuthState{}, domain.ErrOAuthStateInvalid()
	}
	return entry.data, nil
}
