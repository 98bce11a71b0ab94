package oauth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

type Google struct {
	client
	userInfoURL string
}

var _ auth.OAuthProvider = (*Google)(nil)

func NewGoogle(cfg Config) *Google {
	userInfo := googleUserInfoURL
	if cfg.APIBaseURL != "" {
		userInfo = strings.TrimRight(cfg.APIBaseURL, "/") + "/oauth2/v3/userinfo"
	}
	return &Google{
		client:      newClient(cfg, google.Endpoint, []string{"openid", "email", "profile"}),
		userInfoURL: userInfo,
	}
}

func (g *Google) Name() string { return ProviderGoogle }

func (g *Google) AuthCodeURL(state, verifier, redirectURL string) string {
	return g.authCodeURL(state, verifier, redirectURL, oauth2.AccessTypeOnline)
}

// googleUserInfo is the OIDC userinfo payload.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (g *Google) Exchange(ctx context.Context, code, verifier, redirectURL string) (domain.ProviderAssertion, error) {
	tok, err := g.exchange(ctx, code, verifier, redirectURL)
	if err != nil {
		return domain.ProviderAssertion{}, err
	}

	var info googleUserInfo
	if err := g.getJSON(ctx, g.userInfoURL, tok, "application/json", &info); err != nil {
		return domain.ProviderAssertion{}, err
	}
	if strings.TrimSpace(info.Sub) == "" {
		return domain.ProviderAssertion{}, domain.ErrProviderExchange(fmt.Errorf("google userinfo: missing sub"))
	}

	a := domain.ProviderAssertion{
		Provider: ProviderGoogle,
		Subject:  info.Sub,
		Name:     domain.DisplayName(info.Name, info.GivenName, info.FamilyName),
	}
	// unverified addresses must not merge into existing accounts
	if info.EmailVerified {
		a.Email = info.Email
	}
	return a, nil
}
