package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type OAuthHandler interface {
	Start(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	StartToken(w http.ResponseWriter, r *http.Request)
	TokenCallback(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

type AccountHandler interface {
	Profile(w http.ResponseWriter, r *http.Request)
	RequestDelete(w http.ResponseWriter, r *http.Request)
	ConfirmDelete(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health  HealthHandler
	OAuth   OAuthHandler
	Account AccountHandler

	RequestIDMW func(http.Handler) http.Handler
	AccessLogMW func(http.Handler) http.Handler
	MetricsMW   func(http.Handler) http.Handler
	SecurityMW  func(http.Handler) http.Handler
	CORSMW      func(http.Handler) http.Handler
	// GateMW runs on every route; it lets public paths through itself.
	GateMW func(http.Handler) http.Handler

	// optional rate limits
	RLGlobal        func(http.Handler) http.Handler
	RLRequestDelete func(http.Handler) http.Handler
	RLConfirmDelete func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.OAuth == nil {
		return nil, fmt.Errorf("nil OAuth handler")
	}
	if deps.Account == nil {
		return nil, fmt.Errorf("nil Account handler")
	}
	if deps.GateMW == nil {
		return nil, fmt.Errorf("nil Gate middleware")
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	if deps.RequestIDMW != nil {
		r.Use(deps.RequestIDMW)
	}
	if deps.AccessLogMW != nil {
		r.Use(deps.AccessLogMW)
	}
	r.Use(chimw.Recoverer)
	if deps.MetricsMW != nil {
		r.Use(deps.MetricsMW)
	}
	if deps.SecurityMW != nil {
		r.Use(deps.SecurityMW)
	}
	if deps.CORSMW != nil {
		r.Use(deps.CORSMW)
	}
	if deps.RLGlobal != nil {
		r.Use(deps.RLGlobal)
	}
	r.Use(deps.GateMW)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/logout", deps.OAuth.Logout)

		r.Get("/{provider}", deps.OAuth.Start)
		r.Post("/{provider}", deps.OAuth.Start)
		r.Get("/{provider}/callback", deps.OAuth.Callback)
		r.Get("/{provider}/token", deps.OAuth.StartToken)
		r.Get("/{provider}/token/callback", deps.OAuth.TokenCallback)
	})

	r.Get("/profile", deps.Account.Profile)

	r.Route("/account", func(r chi.Router) {
		r.With(mws(deps.RLRequestDelete)...).Post("/request-delete", deps.Account.RequestDelete)
		r.With(mws(deps.RLConfirmDelete)...).Get("/delete", deps.Account.ConfirmDelete)
	})

	return r, nil
}

func mws(list ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, 0, len(list))
	for _, m := range list {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
