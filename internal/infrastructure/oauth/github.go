package oauth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2/github"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

const (
	ProviderGitHub = "github"

	githubAPIBaseURL = "https://api.github.com"
	githubAccept     = "application/vnd.github.v3+json"
)

type GitHub struct {
	client
	apiBase string
}

var _ auth.OAuthProvider = (*GitHub)(nil)

func NewGitHub(cfg Config) *GitHub {
	base := githubAPIBaseURL
	if cfg.APIBaseURL != "" {
		base = strings.TrimRight(cfg.APIBaseURL, "/")
	}
	return &GitHub{
		client:  newClient(cfg, github.Endpoint, []string{"read:user", "user:email"}),
		apiBase: base,
	}
}

func (g *GitHub) Name() string { return ProviderGitHub }

func (g *GitHub) AuthCodeURL(state, verifier, redirectURL string) string {
	return g.authCodeURL(state, verifier, redirectURL)
}

type ghUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Exchange(ctx context.Context, code, verifier, redirectURL string) (domain.ProviderAssertion, error) {
	tok, err := g.exchange(ctx, code, verifier, redirectURL)
	if err != nil {
		return domain.ProviderAssertion{}, err
	}

	var u ghUser
	if err := g.getJSON(ctx, g.apiBase+"/user", tok, githubAccept, &u); err != nil {
		return domain.ProviderAssertion{}, err
	}
	if u.ID == 0 {
		return domain.ProviderAssertion{}, domain.ErrProviderExchange(fmt.Errorf("github user: missing id"))
	}

	// /user only shows the public address; /user/emails carries verification
	var emails []ghEmail
	if err := g.getJSON(ctx, g.apiBase+"/user/emails", tok, githubAccept, &emails); err != nil {
		// the account is still reachable through the link
		logger.WithCtx(ctx).Warn().Err(err).Int64("github_id", u.ID).Msg("github emails unavailable")
		emails = nil
	}

	return domain.ProviderAssertion{
		Provider: ProviderGitHub,
		Subject:  strconv.FormatInt(u.ID, 10),
		Email:    pickVerifiedEmail(emails),
		Name:     domain.DisplayName(u.Name, u.Login, ""),
	}, nil
}

// pickVerifiedEmail prefers the primary verified address, then any verified one.
func pickVerifiedEmail(emails []ghEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
