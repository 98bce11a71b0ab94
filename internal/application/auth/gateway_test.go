package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

type gatewayFixture struct {
	gw       *Gateway
	google   *fakeProvider
	states   *fakeStates
	sessions *fakeSessions
	bearer   *fakeBearer
	store    *fakeStore
	audit    *recordingAuditor
}

func newGatewayFixture(t *testing.T) gatewayFixture {
	t.Helper()
	google := &fakeProvider{
		name:      "google",
		assertion: domain.ProviderAssertion{Provider: "google", Subject: "g-123", Email: "a@x.com", Name: "A"},
	}
	states := newFakeStates()
	sessions := newFakeSessions()
	bearer := &fakeBearer{}
	store := newFakeStore()
	audit := &recordingAuditor{}

	gw := NewGateway(
		fakeRegistry{"google": google},
		states,
		NewResolver(store),
		sessions,
		bearer,
		GatewayConfig{
			AllowedOrigins: []string{"https://app.example.com"},
			PublicBaseURL:  "https://api.example.com/",
			TokenRedirects: []string{"wenbun://auth"},
			SessionTTL:     30 * 24 * time.Hour,
		},
	).WithAudit(audit)

	return gatewayFixture{gw: gw, google: google, states: states, sessions: sessions, bearer: bearer, store: store, audit: audit}
}

func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestGateway_Begin_StoresStateAndBuildsCallback(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)

	authURL, err := f.gw.Begin(context.Background(), "google", domain.ModeToken, "https://app.example.com/x")
	require.NoError(t, err)

	assert.Contains(t, authURL, "redirect_uri=https://api.example.com/auth/google/token/callback")
	st, ok := f.states.m[stateFromURL(t, authURL)]
	require.True(t, ok, "state must be stored")
	assert.Equal(t, "google", st.Provider)
	assert.Equal(t, domain.ModeToken, st.Mode)
	assert.Equal(t, "https://app.example.com/x", st.Redirect)
	assert.Len(t, st.Verifier, 43)
}

func TestGateway_Begin_UnknownProvider(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)

	_, err := f.gw.Begin(context.Background(), "myspace", domain.ModeSession, "")
	require.Error(t, err)
	assert.True(t, domain.Is(err, "unsupported_provider"))
}

func TestGateway_SessionMode_EndToEnd(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "https://app.example.com/deep/path")
	require.NoError(t, err)

	out, err := f.gw.Complete(ctx, "google", domain.ModeSession, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com/deep/path", out.RedirectURL)
	assert.NotEmpty(t, out.SessionID)
	assert.Empty(t, out.Token)
	assert.Equal(t, out.Account.ID, f.sessions.m[out.SessionID])
	assert.Equal(t, []time.Duration{30 * 24 * time.Hour}, f.sessions.ttls)
	assert.Equal(t, "https://api.example.com/auth/google/callback", f.google.gotRedirct)
	assert.Len(t, f.google.gotVerif, 43)
	assert.Contains(t, f.audit.actions, "login:session:"+out.Account.ID)
}

func TestGateway_SessionMode_ForeignRedirectFallsBack(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "https://evil.com")
	require.NoError(t, err)

	out, err := f.gw.Complete(ctx, "google", domain.ModeSession, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/settings", out.RedirectURL)
}

func TestGateway_TokenMode_WithAllowedRedirect(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeToken, "https://app.example.com/cb?x=1")
	require.NoError(t, err)

	out, err := f.gw.Complete(ctx, "google", domain.ModeToken, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.NoError(t, err)

	assert.Empty(t, out.SessionID)
	assert.Equal(t, "tok-"+out.Account.ID, out.Token)
	u, err := url.Parse(out.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", u.Host)
	assert.Equal(t, "1", u.Query().Get("x"))
	assert.Equal(t, out.Token, u.Query().Get("token"))
	require.Len(t, f.bearer.signed, 1)
	assert.Equal(t, "a@x.com", f.bearer.signed[0].Email)
}

func TestGateway_TokenMode_NativeDeepLink(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeToken, "wenbun://auth")
	require.NoError(t, err)

	out, err := f.gw.Complete(ctx, "google", domain.ModeToken, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.NoError(t, err)

	assert.Equal(t, "wenbun://auth?token="+url.QueryEscape(out.Token), out.RedirectURL)
}

func TestGateway_TokenMode_UnlistedDeepLink_ReturnsBodyToken(t *testing.T) {
	t.Parallel()
	for _, redirect := range []string{"wenbun://authx", "otherapp://auth", "wenbun://evil.com"} {
		f := newGatewayFixture(t)
		ctx := context.Background()

		authURL, err := f.gw.Begin(ctx, "google", domain.ModeToken, redirect)
		require.NoError(t, err)

		out, err := f.gw.Complete(ctx, "google", domain.ModeToken, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
		require.NoError(t, err)
		assert.Empty(t, out.RedirectURL, "redirect %q", redirect)
		assert.NotEmpty(t, out.Token)
	}
}

func TestGateway_SessionMode_IgnoresTokenRedirects(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "wenbun://auth")
	require.NoError(t, err)

	out, err := f.gw.Complete(ctx, "google", domain.ModeSession, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/settings", out.RedirectURL)
}

func TestGateway_TokenMode_WithoutOrForeignRedirect_ReturnsBodyToken(t *testing.T) {
	t.Parallel()
	for _, redirect := range []string{"", "https://evil.com/steal"} {
		f := newGatewayFixture(t)
		ctx := context.Background()

		authURL, err := f.gw.Begin(ctx, "google", domain.ModeToken, redirect)
		require.NoError(t, err)

		out, err := f.gw.Complete(ctx, "google", domain.ModeToken, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
		require.NoError(t, err)
		assert.Empty(t, out.RedirectURL, "redirect %q", redirect)
		assert.NotEmpty(t, out.Token)
	}
}

func TestGateway_Complete_HandshakeFailures(t *testing.T) {
	t.Parallel()

	t.Run("provider denied", func(t *testing.T) {
		f := newGatewayFixture(t)
		_, err := f.gw.Complete(context.Background(), "google", domain.ModeSession, CallbackInput{Error: "access_denied"})
		assert.True(t, IsHandshakeFailure(err))
		assert.Equal(t, 0, f.store.accountCount())
	})

	t.Run("missing code", func(t *testing.T) {
		f := newGatewayFixture(t)
		_, err := f.gw.Complete(context.Background(), "google", domain.ModeSession, CallbackInput{State: "s"})
		assert.True(t, IsHandshakeFailure(err))
	})

	t.Run("unknown state", func(t *testing.T) {
		f := newGatewayFixture(t)
		_, err := f.gw.Complete(context.Background(), "google", domain.ModeSession, CallbackInput{Code: "c", State: "nope"})
		assert.True(t, IsHandshakeFailure(err))
	})

	t.Run("state reused", func(t *testing.T) {
		f := newGatewayFixture(t)
		ctx := context.Background()
		authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "")
		require.NoError(t, err)
		in := CallbackInput{Code: "c", State: stateFromURL(t, authURL)}

		_, err = f.gw.Complete(ctx, "google", domain.ModeSession, in)
		require.NoError(t, err)
		_, err = f.gw.Complete(ctx, "google", domain.ModeSession, in)
		assert.True(t, IsHandshakeFailure(err))
	})

	t.Run("mode mismatch", func(t *testing.T) {
		f := newGatewayFixture(t)
		ctx := context.Background()
		authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "")
		require.NoError(t, err)

		_, err = f.gw.Complete(ctx, "google", domain.ModeToken, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
		assert.True(t, IsHandshakeFailure(err))
	})

	t.Run("exchange error", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.google.err = domain.ErrProviderExchange(errors.New("bad code"))
		ctx := context.Background()
		authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "")
		require.NoError(t, err)

		_, err = f.gw.Complete(ctx, "google", domain.ModeSession, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
		assert.True(t, IsHandshakeFailure(err))
		assert.Equal(t, 0, f.store.accountCount(), "resolver must not run")
	})
}

func TestGateway_Complete_StorageFailureIsNotHandshakeFailure(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	f.store.failCreateAccount = domain.ErrDBUnavailable(errors.New("down"))
	ctx := context.Background()

	authURL, err := f.gw.Begin(ctx, "google", domain.ModeSession, "")
	require.NoError(t, err)

	_, err = f.gw.Complete(ctx, "google", domain.ModeSession, CallbackInput{Code: "c", State: stateFromURL(t, authURL)})
	require.Error(t, err)
	assert.False(t, IsHandshakeFailure(err))
	assert.Empty(t, f.sessions.m)
}

func TestGateway_Logout(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	ctx := context.Background()
	sid, err := f.sessions.Create(ctx, "acc-1", time.Hour)
	require.NoError(t, err)

	dest, err := f.gw.Logout(ctx, sid, "https://evil.com")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/settings", dest)
	assert.Empty(t, f.sessions.m)
	assert.Contains(t, f.audit.actions, "logout:acc-1")

	dest, err = f.gw.Logout(ctx, "", "https://app.example.com/bye")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/bye", dest)
}

func TestGateway_FailureURLDefault(t *testing.T) {
	t.Parallel()
	f := newGatewayFixture(t)
	assert.True(t, strings.HasPrefix(f.gw.FailureURL(), "https://app.example.com/settings"))
}
