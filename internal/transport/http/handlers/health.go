package http_handlers

import (
	"context"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/response"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis func(ctx context.Context) error
}

// NewHealthHandler takes the database and, when sessions live in redis,
// its ping func. A nil redis check is skipped.
func NewHealthHandler(db Pinger, redis func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			response.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "database unavailable",
			})
			return
		}
	}
	if h.redis != nil {
		if err := h.redis(r.Context()); err != nil {
			response.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "redis unavailable",
			})
			return
		}
	}

	response.OK(w, map[string]string{"status": "ready"})
}
