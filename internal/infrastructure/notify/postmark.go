package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

var ErrInvalidConfig = errors.New("notify: invalid configuration")

type PostmarkNotifier struct {
	client *postmark.Client
	from   string
}

var _ auth.DeletionNotifier = (*PostmarkNotifier)(nil)

// NewPostmarkNotifier requires both tokens and a sender address.
func NewPostmarkNotifier(serverToken, accountToken, from string) (*PostmarkNotifier, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	if accountToken == "" {
		return nil, fmt.Errorf("%w: postmark account token is required", ErrInvalidConfig)
	}
	if from == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return &PostmarkNotifier{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (n *PostmarkNotifier) SendDeletionLink(ctx context.Context, msg auth.DeletionEmail) error {
	m, err := RenderDeletion(msg)
	if err != nil {
		return domain.ErrInternal(err)
	}

	resp, err := n.client.SendEmail(ctx, postmark.Email{
		From:     n.from,
		To:       m.To,
		Subject:  m.Subject,
		Tag:      "account-deletion",
		HTMLBody: m.HTML,
		TextBody: m.Text,
	})
	if err != nil {
		return domain.ErrEmailUnavailable(err)
	}
	if resp.ErrorCode > 0 {
		return domain.ErrEmailUnavailable(fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
