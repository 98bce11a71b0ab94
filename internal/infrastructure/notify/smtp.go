package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// mailSender is the part of *gomail.Dialer the notifier uses.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	dialer mailSender
	from   string
}

var _ auth.DeletionNotifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(host string, port int, username, password, from string) (*SMTPNotifier, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if from == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}, nil
}

func (n *SMTPNotifier) SendDeletionLink(ctx context.Context, msg auth.DeletionEmail) error {
	m, err := RenderDeletion(msg)
	if err != nil {
		return domain.ErrInternal(err)
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", n.from)
	gm.SetHeader("To", m.To)
	gm.SetHeader("Subject", m.Subject)
	gm.SetBody("text/html", m.HTML)
	gm.AddAlternative("text/plain", m.Text)

	// gomail has no context support; bail out early if the caller is gone
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(gm); err != nil {
		return domain.ErrEmailUnavailable(err)
	}
	return nil
}
