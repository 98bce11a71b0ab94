package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string `env:"ENV" envDefault:"dev"` // dev / staging / prod
	//HTTP
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required,notEmpty"`

	// Client origins allowed as post-login destinations. The first one is
	// the fallback destination.
	AllowedOrigins     []string `env:"CLIENT_URLS,required,notEmpty" envSeparator:","`
	FailureRedirectURL string   `env:"OAUTH_FAILURE_URL"`
	// Extra token-mode destinations such as native deep links
	// (wenbun://auth). Never used for CORS or cookies.
	TokenRedirects []string `env:"TOKEN_REDIRECT_URLS" envSeparator:","`

	//Auth / Security
	SessionSecret    string        `env:"SESSION_SECRET,required,notEmpty"`
	JWTSecret        string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"identity-service"`
	BearerTTL        time.Duration `env:"BEARER_TOKEN_TTL" envDefault:"720h"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	OAuthStateTTL    time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	DeletionTokenTTL time.Duration `env:"DELETION_TOKEN_TTL" envDefault:"24h"`
	// Base of the emailed deletion link. Defaults to the first client origin's
	// /account/delete page.
	DeletionConfirmURL string `env:"DELETION_CONFIRM_URL"`

	Google OAuthClient `envPrefix:"GOOGLE_"`
	GitHub OAuthClient `envPrefix:"GITHUB_"`

	// Infrastructure
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DBDebug       bool   `env:"DB_DEBUG" envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Deletion email delivery
	EmailProvider  string `env:"EMAIL_PROVIDER" envDefault:"log"` // postmark / smtp / rabbitmq / log
	EmailFrom      string `env:"EMAIL_FROM" envDefault:"noreply@example.com"`
	Postmark       PostmarkConfig
	SMTP           SMTPConfig
	RabbitURL      string `env:"RABBIT_URL"`
	RabbitExchange string `env:"RABBIT_EXCHANGE" envDefault:"city.events"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

const minSessionSecretLen = 32

// Load reads an optional .env file, parses the environment and fails fast on
// anything the service cannot run without.
func Load() (*Config, error) {
	// .env is a dev convenience; a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if _, err := parseAbsoluteURL(o); err != nil {
			return fmt.Errorf("CLIENT_URLS: invalid origin %q: %w", o, err)
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		return fmt.Errorf("missing required env var: CLIENT_URLS")
	}
	c.AllowedOrigins = origins

	redirects := make([]string, 0, len(c.TokenRedirects))
	for _, r := range c.TokenRedirects {
		r = strings.TrimRight(strings.TrimSpace(r), "/")
		if r == "" {
			continue
		}
		if err := validateTokenRedirect(r); err != nil {
			return fmt.Errorf("TOKEN_REDIRECT_URLS: invalid entry %q: %w", r, err)
		}
		redirects = append(redirects, r)
	}
	c.TokenRedirects = redirects

	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if _, err := parseAbsoluteURL(c.PublicBaseURL); err != nil {
		return fmt.Errorf("PUBLIC_BASE_URL: %w", err)
	}

	if c.FailureRedirectURL == "" {
		c.FailureRedirectURL = origins[0] + "/settings?login=failed"
	}

	c.DeletionConfirmURL = strings.TrimSpace(c.DeletionConfirmURL)
	if c.DeletionConfirmURL == "" {
		c.DeletionConfirmURL = origins[0] + "/account/delete"
	}
	if _, err := parseAbsoluteURL(c.DeletionConfirmURL); err != nil {
		return fmt.Errorf("DELETION_CONFIRM_URL: %w", err)
	}

	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}

	if err := validateDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}

	if !c.Google.Enabled() && !c.GitHub.Enabled() {
		return fmt.Errorf("no identity provider configured: set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET")
	}

	switch c.EmailProvider {
	case "log":
	case "postmark":
		if c.Postmark.ServerToken == "" || c.Postmark.AccountToken == "" {
			return fmt.Errorf("EMAIL_PROVIDER=postmark requires POSTMARK_SERVER_TOKEN and POSTMARK_ACCOUNT_TOKEN")
		}
	case "smtp":
		if c.SMTP.Host == "" {
			return fmt.Errorf("EMAIL_PROVIDER=smtp requires SMTP_HOST")
		}
	case "rabbitmq":
		if c.RabbitURL == "" {
			return fmt.Errorf("EMAIL_PROVIDER=rabbitmq requires RABBIT_URL")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}

	for key, d := range map[string]time.Duration{
		"BEARER_TOKEN_TTL":   c.BearerTTL,
		"SESSION_TTL":        c.SessionTTL,
		"OAUTH_STATE_TTL":    c.OAuthStateTTL,
		"DELETION_TOKEN_TTL": c.DeletionTokenTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// SecureCookies reports whether cookies must be Secure (anything but dev).
func (c *Config) SecureCookies() bool {
	return c.Env != "dev"
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// validateTokenRedirect accepts any scheme://host entry, custom app schemes
// included, except schemes a browser would execute or read locally.
func validateTokenRedirect(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		return errors.New("missing scheme")
	case "javascript", "data", "vbscript", "file":
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL: scheme must be postgres or postgresql")
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("DATABASE_URL: missing database name")
	}
	return nil
}
