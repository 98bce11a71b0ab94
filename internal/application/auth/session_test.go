package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

func TestSessions_Authenticate(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	acc, err := NewResolver(store).Resolve(context.Background(), domain.ProviderAssertion{
		Provider: "google", Subject: "g-1", Email: "a@x.com", Name: "A",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	sessions := newFakeSessions()
	sid, _ := sessions.Create(context.Background(), acc.ID, time.Hour)

	s := NewSessions(sessions, store)

	id, err := s.Authenticate(context.Background(), sid)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.ID != acc.ID || id.Email != "a@x.com" || id.Name != "A" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := s.Authenticate(context.Background(), ""); !domain.Is(err, "not_authenticated") {
		t.Fatalf("expected not_authenticated, got %v", err)
	}
	if _, err := s.Authenticate(context.Background(), "unknown"); !domain.Is(err, "not_authenticated") {
		t.Fatalf("expected not_authenticated, got %v", err)
	}
}

func TestSessions_Authenticate_DeletedAccountPurgesSession(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	sessions := newFakeSessions()
	sid, _ := sessions.Create(context.Background(), "gone", time.Hour)

	_, err := NewSessions(sessions, store).Authenticate(context.Background(), sid)
	if !domain.Is(err, "not_authenticated") {
		t.Fatalf("expected not_authenticated, got %v", err)
	}
	if _, ok := sessions.m[sid]; ok {
		t.Fatalf("expected orphaned session to be purged")
	}
}

func TestSessions_Authenticate_StoreFailurePropagates(t *testing.T) {
	t.Parallel()
	sessions := newFakeSessions()
	sessions.err = domain.ErrRedisUnavailable(errors.New("down"))

	_, err := NewSessions(sessions, newFakeStore()).Authenticate(context.Background(), "sid")
	if !domain.Is(err, "redis_unavailable") {
		t.Fatalf("expected redis_unavailable, got %v", err)
	}
}
