package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// SessionStore keeps sess:<id> -> <account id> with the session TTL.
type SessionStore struct {
	rdb *goredis.Client

	prefix     string
	tokenBytes int
}

var _ auth.SessionStore = (*SessionStore)(nil)

func NewSessionStore(c *Client) *SessionStore {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	return &SessionStore{
		rdb:        rdb,
		prefix:     "sess:",
		tokenBytes: 32, // 256-bit
	}
}

func (s *SessionStore) Create(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", domain.ErrMissingField("account_id")
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	id, err := newOpaqueToken(s.tokenBytes)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.prefix+id, accountID, ttl).Err(); err != nil {
		return "", domain.ErrRedisUnavailable(err)
	}
	return id, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", domain.ErrSessionNotFound()
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	accountID, err := s.rdb.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrSessionNotFound()
		}
		return "", domain.ErrRedisUnavailable(err)
	}
	if strings.TrimSpace(accountID) == "" {
		return "", domain.ErrSessionNotFound()
	}
	return accountID, nil
}

// Delete is idempotent.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}
	if err := s.rdb.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

var errNotConfigured = errors.New("redis client not configured")

func newOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	// URL-safe, no padding
	return base64.RawURLEncoding.EncodeToString(b), nil
}
