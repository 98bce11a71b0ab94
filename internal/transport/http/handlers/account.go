package http_handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/transport/http/response"
)

type AccountDeletion interface {
	Request(ctx context.Context, email string) error
	Confirm(ctx context.Context, raw string) error
}

type AccountHandler struct {
	deletion AccountDeletion
}

func NewAccountHandler(deletion AccountDeletion) *AccountHandler {
	return &AccountHandler{deletion: deletion}
}

// Profile handles GET /profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.WriteUnauthorized(w, r)
		return
	}
	response.OK(w, dto.ProfileResponse{ID: id.ID, Email: id.Email, Name: id.Name})
}

// RequestDelete handles POST /account/request-delete.
// The answer is the same whether or not the address belongs to an account.
func (h *AccountHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestDeletionRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.deletion.Request(r.Context(), req.Email); err != nil {
		middleware.DeletionsTotal.WithLabelValues("request", "error").Inc()
		response.WriteError(w, r, err)
		return
	}

	middleware.DeletionsTotal.WithLabelValues("request", "accepted").Inc()
	response.OK(w, dto.SuccessResponse{Success: true})
}

// ConfirmDelete handles GET /account/delete?token=...
// It is opened straight from the email, so answers are plain text.
func (h *AccountHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	err := h.deletion.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err == nil {
		middleware.DeletionsTotal.WithLabelValues("confirm", "deleted").Inc()
		response.WriteText(w, http.StatusOK, "Your account has been deleted.")
		return
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindValidation {
		middleware.DeletionsTotal.WithLabelValues("confirm", de.Code).Inc()
		response.WriteText(w, http.StatusBadRequest, de.Message)
		return
	}

	middleware.DeletionsTotal.WithLabelValues("confirm", "error").Inc()
	logger.WithCtx(r.Context()).Error().Err(err).Msg("account deletion failed")
	response.WriteText(w, http.StatusInternalServerError, "Server error")
}
