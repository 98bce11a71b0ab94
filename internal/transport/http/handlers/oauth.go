package http_handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/response"
)

type LoginGateway interface {
	Begin(ctx context.Context, provider string, mode domain.AuthMode, redirect string) (string, error)
	Complete(ctx context.Context, provider string, mode domain.AuthMode, in auth.CallbackInput) (auth.Outcome, error)
	Logout(ctx context.Context, sessionID, redirect string) (string, error)
	FailureURL() string
}

type SessionCookies interface {
	Set(w http.ResponseWriter, sessionID string)
	Clear(w http.ResponseWriter)
	Read(r *http.Request) string
}

// OAuthHandler serves the provider login endpoints in both modes.
type OAuthHandler struct {
	gateway LoginGateway
	cookies SessionCookies
}

func NewOAuthHandler(gateway LoginGateway, cookies SessionCookies) *OAuthHandler {
	return &OAuthHandler{gateway: gateway, cookies: cookies}
}

// Start handles GET|POST /auth/{provider}?redirect=...
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.begin(w, r, domain.ModeSession)
}

// StartToken handles GET /auth/{provider}/token?redirect=...
func (h *OAuthHandler) StartToken(w http.ResponseWriter, r *http.Request) {
	h.begin(w, r, domain.ModeToken)
}

func (h *OAuthHandler) begin(w http.ResponseWriter, r *http.Request, mode domain.AuthMode) {
	provider := chi.URLParam(r, "provider")

	target, err := h.gateway.Begin(r.Context(), provider, mode, r.URL.Query().Get("redirect"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Redirect(w, r, target)
}

// Callback handles GET /auth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	out, ok := h.complete(w, r, provider, domain.ModeSession)
	if !ok {
		return
	}

	h.cookies.Set(w, out.SessionID)
	response.Redirect(w, r, out.RedirectURL)
}

// TokenCallback handles GET /auth/{provider}/token/callback
func (h *OAuthHandler) TokenCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	out, ok := h.complete(w, r, provider, domain.ModeToken)
	if !ok {
		return
	}

	if out.RedirectURL != "" {
		response.Redirect(w, r, out.RedirectURL)
		return
	}
	response.OK(w, dto.TokenResponse{Token: out.Token})
}

func (h *OAuthHandler) complete(w http.ResponseWriter, r *http.Request, provider string, mode domain.AuthMode) (auth.Outcome, bool) {
	q := r.URL.Query()
	out, err := h.gateway.Complete(r.Context(), provider, mode, auth.CallbackInput{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	if err != nil {
		if auth.IsHandshakeFailure(err) {
			status := "failed"
			if domain.Is(err, "provider_denied") {
				status = "denied"
			}
			middleware.LoginsTotal.WithLabelValues(provider, string(mode), status).Inc()

			logger.WithCtx(r.Context()).Warn().
				Err(err).
				Str("provider", provider).
				Str("mode", string(mode)).
				Msg("oauth_handshake_failed")
			response.Redirect(w, r, h.gateway.FailureURL())
			return auth.Outcome{}, false
		}
		response.WriteError(w, r, err)
		return auth.Outcome{}, false
	}

	middleware.LoginsTotal.WithLabelValues(provider, string(mode), "success").Inc()
	return out, true
}

// Logout handles GET /auth/logout?redirect=...
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sid := h.cookies.Read(r)

	// the cookie goes either way
	h.cookies.Clear(w)

	target, err := h.gateway.Logout(r.Context(), sid, r.URL.Query().Get("redirect"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Redirect(w, r, target)
}
