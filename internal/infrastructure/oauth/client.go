package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// Config is what every provider needs. Endpoint and the API URLs default to
// the provider's public ones; tests point them at an httptest server.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	APIBaseURL   string
	HTTPClient   *http.Client
}

// client is the provider-independent half of a handshake: PKCE auth URL,
// code exchange and authenticated JSON calls against the provider API.
type client struct {
	conf       oauth2.Config
	httpClient *http.Client
}

func newClient(cfg Config, defaultEndpoint oauth2.Endpoint, defaultScopes []string) client {
	if cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return client{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		httpClient: cfg.HTTPClient,
	}
}

// config returns a per-call copy bound to the callback URL of the mode in use.
func (c client) config(redirectURL string) *oauth2.Config {
	conf := c.conf
	conf.RedirectURL = redirectURL
	return &conf
}

func (c client) authCodeURL(state, verifier, redirectURL string, opts ...oauth2.AuthCodeOption) string {
	opts = append(opts, oauth2.S256ChallengeOption(verifier))
	return c.config(redirectURL).AuthCodeURL(state, opts...)
}

func (c client) exchange(ctx context.Context, code, verifier, redirectURL string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config(redirectURL).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, domain.ErrProviderExchange(err)
	}
	if tok.AccessToken == "" {
		return nil, domain.ErrProviderExchange(fmt.Errorf("empty access token"))
	}
	return tok, nil
}

func (c client) getJSON(ctx context.Context, url string, tok *oauth2.Token, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ErrProviderExchange(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrProviderExchange(fmt.Errorf("GET %s: %w", url, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ErrProviderExchange(fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return domain.ErrProviderExchange(fmt.Errorf("decode %s: %w", url, err))
	}
	return nil
}
