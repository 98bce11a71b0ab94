package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

func TestOAuthStateStore_SingleUse(t *testing.T) {
	c, _ := newTestClient(t)
	s := NewOAuthStateStore(c, 0)
	ctx := context.Background()

	in := auth.OAuthState{Provider: "google", Mode: domain.ModeToken, Redirect: "https://app.example.com/x", Verifier: "v"}
	token, err := s.Create(ctx, in)
	require.NoError(t, err)

	out, err := s.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = s.Consume(ctx, token)
	assert.True(t, domain.Is(err, "oauth_state_invalid"))
}

func TestOAuthStateStore_ExpiresAndRejectsJunk(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewOAuthStateStore(c, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, auth.OAuthState{Provider: "github", Mode: domain.ModeSession})
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = s.Consume(ctx, token)
	assert.True(t, domain.Is(err, "oauth_state_invalid"))

	_, err = s.Consume(ctx, "")
	assert.True(t, domain.Is(err, "oauth_state_invalid"))

	require.NoError(t, mr.Set("oauth:state:garbage", "{not json"))
	_, err = s.Consume(ctx, "garbage")
	assert.True(t, domain.Is(err, "oauth_state_invalid"))
}
