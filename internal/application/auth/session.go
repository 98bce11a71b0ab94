package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

// AccountReader is the read side of IdentityStore used by session lookups.
type AccountReader interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
}

// Sessions turns a session id into the identity it belongs to.
type Sessions struct {
	store    SessionStore
	accounts AccountReader
}

func NewSessions(store SessionStore, accounts AccountReader) *Sessions {
	return &Sessions{store: store, accounts: accounts}
}

// Authenticate returns domain.ErrNotAuthenticated when there is no live
// session or its account is gone. A session whose account was deleted is
// purged on sight.
func (s *Sessions) Authenticate(ctx context.Context, sessionID string) (domain.Identity, error) {
	if sessionID == "" {
		return domain.Identity{}, domain.ErrNotAuthenticated()
	}

	accountID, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if domain.Is(err, "session_not_found") {
			return domain.Identity{}, domain.ErrNotAuthenticated()
		}
		return domain.Identity{}, err
	}

	acc, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if domain.Is(err, "account_not_found") {
			if delErr := s.store.Delete(ctx, sessionID); delErr != nil {
				logger.WithCtx(ctx).Warn().Err(delErr).Msg("failed to purge orphaned session")
			}
			return domain.Identity{}, domain.ErrNotAuthenticated()
		}
		return domain.Identity{}, err
	}
	return acc.Identity(), nil
}
