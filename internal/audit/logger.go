package audit

import (
	"context"

	"github.com/rs/zerolog"

	appCtx "github.com/baechuer/real-time-ressys/services/identity-service/internal/pkg/context"
)

// Logger provides structured audit logging for identity business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// AccountCreated logs the first sighting of an external identity
func (l *Logger) AccountCreated(ctx context.Context, accountID, provider string) {
	l.log.Info().
		Str("action", "account_created").
		Str("account_id", accountID).
		Str("provider", provider).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("Account created")
}

// ProviderLinked logs a new provider link, including links onto existing accounts
func (l *Logger) ProviderLinked(ctx context.Context, accountID, provider string) {
	l.log.Info().
		Str("action", "provider_linked").
		Str("account_id", accountID).
		Str("provider", provider).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("Provider linked to account")
}

// Login logs a completed handshake
func (l *Logger) Login(ctx context.Context, accountID, provider, mode string) {
	l.log.Info().
		Str("action", "login").
		Str("account_id", accountID).
		Str("provider", provider).
		Str("mode", mode).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("User logged in")
}

// Logout logs a destroyed session
func (l *Logger) Logout(ctx context.Context, accountID string) {
	l.log.Info().
		Str("action", "logout").
		Str("account_id", accountID).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("User logged out")
}

// DeletionRequested logs an issued deletion link
func (l *Logger) DeletionRequested(ctx context.Context, accountID, email string) {
	l.log.Warn().
		Str("action", "deletion_requested").
		Str("account_id", accountID).
		Str("email", maskEmail(email)).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("Account deletion requested")
}

// AccountDeleted logs a consumed deletion link
func (l *Logger) AccountDeleted(ctx context.Context, accountID string) {
	l.log.Warn().
		Str("action", "account_deleted").
		Str("account_id", accountID).
		Str("request_id", appCtx.GetRequestID(ctx)).
		Msg("Account deleted")
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	// Show first 2 chars and domain
	at := 0
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
