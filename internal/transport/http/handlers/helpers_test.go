package http_handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

// withURLParam injects chi URL param (e.g. /auth/{provider}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

// readCookie finds cookie by name from response headers.
func readCookie(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
