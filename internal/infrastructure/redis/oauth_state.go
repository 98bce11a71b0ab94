package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// OAuthStateStore manages single-use OAuth state tokens in Redis.
type OAuthStateStore struct {
	client *Client
	ttl    time.Duration
}

var _ auth.OAuthStateStore = (*OAuthStateStore)(nil)

func NewOAuthStateStore(client *Client, ttl time.Duration) *OAuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{
		client: client,
		ttl:    ttl,
	}
}

func stateKey(token string) string { return "oauth:state:" + token }

// Create stores the state and returns the token to send through the provider.
func (s *OAuthStateStore) Create(ctx context.Context, state auth.OAuthState) (string, error) {
	token, err := newOpaqueToken(32)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return "", domain.ErrInternal(err)
	}

	if err := s.client.rdb.Set(ctx, stateKey(token), data, s.ttl).Err(); err != nil {
		return "", domain.ErrRedisUnavailable(err)
	}
	return token, nil
}

// Consume reads and deletes the state in one step; a token works once.
func (s *OAuthStateStore) Consume(ctx context.Context, token string) (auth.OAuthState, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.OAuthState{}, domain.ErrOAuthStateInvalid()
	}

	data, err := s.client.rdb.GetDel(ctx, stateKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return auth.OAuthState{}, domain.ErrOAuthStateInvalid()
		}
		return auth.OAuthState{}, domain.ErrRedisUnavailable(err)
	}

	var state auth.OAuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return auth.OAuthState{}, domain.ErrOAuthStateInvalid()
	}
	return state, nil
}
