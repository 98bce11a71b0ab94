package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// SessionAuthenticator resolves a session id to the identity behind it.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (domain.Identity, error)
}

// BearerVerifier verifies a bearer credential.
type BearerVerifier interface {
	Verify(token string) (domain.BearerClaims, error)
}

// SessionIDReader extracts a verified session id from the request ("" if none).
type SessionIDReader interface {
	Read(r *http.Request) string
}

// DefaultPublicPaths bypass the gate. Entries ending in "/" match by prefix.
var DefaultPublicPaths = []string{
	"/auth/",
	"/account/request-delete",
	"/account/delete",
	"/healthz",
	"/readyz",
	"/metrics",
}

type GateConfig struct {
	Sessions    SessionAuthenticator
	Cookies     SessionIDReader
	Bearer      BearerVerifier
	PublicPaths []string
}

// Gate lets a request through when it carries a live session or a valid
// bearer token; the identity is put on the context. The session is checked
// first. Bad bearer tokens count as absent. Everything not public without an
// identity gets a bare 401.
func Gate(cfg GateConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = DefaultPublicPaths
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, cfg.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			id, ok, err := identify(r, cfg)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if !ok {
				GateRejectionsTotal.Inc()
				writeErr(w, r, domain.ErrNotAuthenticated())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// identify returns an error only for server-side failures (store down).
func identify(r *http.Request, cfg GateConfig) (domain.Identity, bool, error) {
	if cfg.Sessions != nil && cfg.Cookies != nil {
		if sid := cfg.Cookies.Read(r); sid != "" {
			id, err := cfg.Sessions.Authenticate(r.Context(), sid)
			switch {
			case err == nil:
				return id, true, nil
			case domain.KindOf(err) == domain.KindAuth:
				// fall through to bearer
			default:
				return domain.Identity{}, false, err
			}
		}
	}

	if cfg.Bearer != nil {
		if raw := bearerToken(r); raw != "" {
			claims, err := cfg.Bearer.Verify(raw)
			if err == nil {
				return claims.Identity(), true, nil
			}
			logger.WithCtx(r.Context()).Debug().Err(err).Msg("ignoring unusable bearer token")
		}
	}

	return domain.Identity{}, false, nil
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}
