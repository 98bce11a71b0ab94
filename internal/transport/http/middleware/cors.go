package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the configured client origins to call the API with credentials
// (the session cookie) and to read the request id.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderXRequestID},
		ExposedHeaders:   []string{HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
