package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// pkceVerifierBytes yields a 43 character verifier, the RFC 7636 minimum.
const pkceVerifierBytes = 32

// IdentityResolver is the part of Resolver the gateway depends on.
type IdentityResolver interface {
	Resolve(ctx context.Context, a domain.ProviderAssertion) (domain.Account, error)
}

type GatewayConfig struct {
	// AllowedOrigins is the redirect allowlist; the first entry is the fallback.
	AllowedOrigins []string
	// PublicBaseURL is where providers send the browser back to.
	PublicBaseURL string
	// FailureURL receives the browser when the provider handshake fails.
	FailureURL string
	// TokenRedirects are extra token-mode destinations, typically native
	// app deep links. Session mode never uses them.
	TokenRedirects []string
	SessionTTL     time.Duration
}

// Gateway runs the provider handshake in session or token mode.
type Gateway struct {
	providers ProviderRegistry
	states    OAuthStateStore
	resolver  IdentityResolver
	sessions  SessionStore
	bearer    BearerCodec
	cfg       GatewayConfig
	audit     Auditor
}

func NewGateway(
	providers ProviderRegistry,
	states OAuthStateStore,
	resolver IdentityResolver,
	sessions SessionStore,
	bearer BearerCodec,
	cfg GatewayConfig,
) *Gateway {
	if cfg.FailureURL == "" {
		cfg.FailureURL = ValidateRedirect("", cfg.AllowedOrigins)
	}
	return &Gateway{
		providers: providers,
		states:    states,
		resolver:  resolver,
		sessions:  sessions,
		bearer:    bearer,
		cfg:       cfg,
		audit:     noopAuditor{},
	}
}

func (g *Gateway) WithAudit(a Auditor) *Gateway {
	if a != nil {
		g.audit = a
	}
	return g
}

// FailureURL is where the browser goes after a failed handshake.
func (g *Gateway) FailureURL() string { return g.cfg.FailureURL }

// CallbackPath is the route a provider redirects back to for the given mode.
func CallbackPath(provider string, mode domain.AuthMode) string {
	if mode == domain.ModeToken {
		return "/auth/" + provider + "/token/callback"
	}
	return "/auth/" + provider + "/callback"
}

func (g *Gateway) callbackURL(provider string, mode domain.AuthMode) string {
	return strings.TrimRight(g.cfg.PublicBaseURL, "/") + CallbackPath(provider, mode)
}

// Begin stores the handshake state and returns the provider URL to send the
// browser to. The desired destination is kept as-is and validated on return.
func (g *Gateway) Begin(ctx context.Context, provider string, mode domain.AuthMode, redirect string) (string, error) {
	if !mode.Valid() {
		return "", domain.ErrInvalidField("mode", "unknown auth mode")
	}
	p, err := g.providers.Get(provider)
	if err != nil {
		return "", err
	}

	verifier, err := newOpaqueToken(pkceVerifierBytes)
	if err != nil {
		return "", err
	}

	token, err := g.states.Create(ctx, OAuthState{
		Provider: p.Name(),
		Mode:     mode,
		Redirect: redirect,
		Verifier: verifier,
	})
	if err != nil {
		return "", err
	}

	return p.AuthCodeURL(token, verifier, g.callbackURL(p.Name(), mode)), nil
}

// CallbackInput is the provider's redirect back to us.
type CallbackInput struct {
	Code  string
	State string
	// Error is the provider's error parameter (e.g. access_denied).
	Error string
}

// Outcome of a completed handshake.
type Outcome struct {
	Account domain.Account
	// SessionID is set in session mode.
	SessionID string
	// Token is set in token mode.
	Token string
	// RedirectURL is always set in session mode. In token mode it is set only
	// when the client asked for an allowed destination; otherwise the token
	// is returned in the response body.
	RedirectURL string
}

// Complete finishes a handshake. Provider and state failures are reported as
// handshake failures (see IsHandshakeFailure); the resolver never runs
// without a valid assertion.
func (g *Gateway) Complete(ctx context.Context, provider string, mode domain.AuthMode, in CallbackInput) (Outcome, error) {
	if in.Error != "" {
		return Outcome{}, domain.ErrProviderDenied(in.Error)
	}
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.State) == "" {
		return Outcome{}, domain.ErrOAuthStateInvalid()
	}

	p, err := g.providers.Get(provider)
	if err != nil {
		return Outcome{}, err
	}

	st, err := g.states.Consume(ctx, in.State)
	if err != nil {
		return Outcome{}, err
	}
	if st.Provider != p.Name() || st.Mode != mode {
		return Outcome{}, domain.ErrOAuthStateInvalid()
	}

	assertion, err := p.Exchange(ctx, in.Code, st.Verifier, g.callbackURL(p.Name(), mode))
	if err != nil {
		return Outcome{}, err
	}

	acc, err := g.resolver.Resolve(ctx, assertion)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Account: acc}
	switch mode {
	case domain.ModeSession:
		sid, err := g.sessions.Create(ctx, acc.ID, g.cfg.SessionTTL)
		if err != nil {
			return Outcome{}, err
		}
		out.SessionID = sid
		out.RedirectURL = ValidateRedirect(st.Redirect, g.cfg.AllowedOrigins)

	case domain.ModeToken:
		token, err := g.bearer.Sign(acc.Identity())
		if err != nil {
			return Outcome{}, err
		}
		out.Token = token
		if IsAllowedRedirect(st.Redirect, g.cfg.AllowedOrigins) || IsAllowedRedirect(st.Redirect, g.cfg.TokenRedirects) {
			out.RedirectURL = withQueryParam(st.Redirect, "token", token)
		}
	}

	g.audit.Login(ctx, acc.ID, p.Name(), string(mode))
	return out, nil
}

// Logout destroys the session (if any) and returns the validated destination.
func (g *Gateway) Logout(ctx context.Context, sessionID, redirect string) (string, error) {
	if sessionID != "" {
		accountID, err := g.sessions.Get(ctx, sessionID)
		if err != nil && !domain.Is(err, "session_not_found") {
			return "", err
		}
		if err := g.sessions.Delete(ctx, sessionID); err != nil {
			return "", err
		}
		if accountID != "" {
			g.audit.Logout(ctx, accountID)
		}
	}
	return ValidateRedirect(redirect, g.cfg.AllowedOrigins), nil
}

// IsHandshakeFailure reports errors that send the browser to the failure
// destination instead of producing an error response.
func IsHandshakeFailure(err error) bool {
	if err == nil {
		return false
	}
	if domain.KindOf(err) == domain.KindUpstream {
		return true
	}
	return domain.Is(err, "oauth_state_invalid")
}

func withQueryParam(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
