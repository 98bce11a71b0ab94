package middleware

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(ctxIdentity).(domain.Identity)
	return v, ok && v.ID != ""
}
