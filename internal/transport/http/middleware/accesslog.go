package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// AccessLog writes one line per request. It must run after RequestID.
// The query string is left out: it can hold deletion and oauth tokens.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sw, r)

		lvl := zerolog.InfoLevel
		if sw.status >= http.StatusInternalServerError {
			lvl = zerolog.WarnLevel
		}

		logger.WithCtx(r.Context()).WithLevel(lvl).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("latency", time.Since(start)).
			Str("remote_ip", r.RemoteAddr).
			Msg("http_request")
	})
}
