package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
)

// LogNotifier is the development notifier: it logs the link instead of sending it.
type LogNotifier struct {
	lg zerolog.Logger
}

var _ auth.DeletionNotifier = (*LogNotifier)(nil)

func NewLogNotifier(lg zerolog.Logger) *LogNotifier {
	return &LogNotifier{lg: lg.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) SendDeletionLink(ctx context.Context, msg auth.DeletionEmail) error {
	n.lg.Info().
		Str("to", msg.To).
		Str("url", msg.Link).
		Time("expires_at", msg.ExpiresAt).
		Msg("FAKE send account deletion email")
	return nil
}
