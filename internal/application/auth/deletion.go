package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

// deletionTokenBytes is 256 bits of entropy.
const deletionTokenBytes = 32

const deletionSendTimeout = 30 * time.Second

type DeletionConfig struct {
	// ConfirmURL is the base of the emailed link; ?token= is appended. It is
	// normally a client page that forwards the token to GET /account/delete.
	ConfirmURL string
	TokenTTL   time.Duration
}

// DeletionFlow issues, emails and consumes single-use account deletion links.
type DeletionFlow struct {
	store    IdentityStore
	notifier DeletionNotifier
	cfg      DeletionConfig
	now      func() time.Time
	audit    Auditor

	deliveries sync.WaitGroup
}

func NewDeletionFlow(store IdentityStore, notifier DeletionNotifier, cfg DeletionConfig) *DeletionFlow {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &DeletionFlow{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		audit:    noopAuditor{},
	}
}

func (f *DeletionFlow) WithAudit(a Auditor) *DeletionFlow {
	if a != nil {
		f.audit = a
	}
	return f
}

// WithClock overrides the time source (tests).
func (f *DeletionFlow) WithClock(now func() time.Time) *DeletionFlow {
	if now != nil {
		f.now = now
	}
	return f
}

// Request issues a fresh link for the account holding email and hands the
// email to the notifier in the background. The result does not reveal whether the address is registered: unknown
// addresses and notifier failures both return nil.
func (f *DeletionFlow) Request(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrMissingField("email")
	}

	raw, err := newOpaqueToken(deletionTokenBytes)
	if err != nil {
		return err
	}

	now := f.now()
	var (
		acc    domain.Account
		issued bool
	)
	err = f.store.InTx(ctx, func(q Queries) error {
		issued = false

		found, err := q.FindAccountByEmail(ctx, email)
		if err != nil {
			if domain.Is(err, "account_not_found") {
				return nil
			}
			return err
		}
		acc = found

		// A new link supersedes earlier ones for the account.
		if err := q.DeleteDeletionTokensForAccount(ctx, acc.ID); err != nil {
			return err
		}
		if err := q.PurgeExpiredDeletionTokens(ctx, now); err != nil {
			return err
		}
		if err := q.InsertDeletionToken(ctx, domain.DeletionToken{
			Hash:      HashToken(raw),
			AccountID: acc.ID,
			ExpiresAt: now.Add(f.cfg.TokenTTL),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		return err
	}
	if !issued {
		return nil
	}

	f.audit.DeletionRequested(ctx, acc.ID, email)

	msg := DeletionEmail{
		To:        email,
		Name:      acc.Name,
		Link:      f.confirmLink(raw),
		ExpiresAt: now.Add(f.cfg.TokenTTL),
	}
	// Delivery happens off the request path so the response time does not
	// tell a registered address from an unknown one.
	f.deliveries.Go(func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deletionSendTimeout)
		defer cancel()
		if err := f.notifier.SendDeletionLink(sendCtx, msg); err != nil {
			logger.WithCtx(sendCtx).Error().Err(err).Str("account_id", acc.ID).Msg("deletion email not delivered")
		}
	})
	return nil
}

// Wait blocks until every deletion email handed off by Request has been
// attempted. Call it before closing the notifier.
func (f *DeletionFlow) Wait() {
	f.deliveries.Wait()
}

// Confirm consumes a link and deletes its account together with every
// deletion token the account holds. Expired links change nothing.
func (f *DeletionFlow) Confirm(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ErrDeletionLinkMissing()
	}

	var accountID string
	err := f.store.InTx(ctx, func(q Queries) error {
		tok, err := q.LockDeletionToken(ctx, HashToken(raw))
		if err != nil {
			if domain.Is(err, "deletion_token_not_found") {
				return domain.ErrDeletionLinkInvalid()
			}
			return err
		}
		if tok.Expired(f.now()) {
			return domain.ErrDeletionLinkExpired()
		}

		if err := q.DeleteAccount(ctx, tok.AccountID); err != nil {
			if domain.Is(err, "account_not_found") {
				return domain.ErrDeletionLinkInvalid()
			}
			return err
		}
		if err := q.DeleteDeletionTokensForAccount(ctx, tok.AccountID); err != nil {
			return err
		}
		accountID = tok.AccountID
		return nil
	})
	if err != nil {
		return err
	}

	f.audit.AccountDeleted(ctx, accountID)
	return nil
}

func (f *DeletionFlow) confirmLink(raw string) string {
	u, err := url.Parse(f.cfg.ConfirmURL)
	if err != nil {
		return f.cfg.ConfirmURL + "?token=" + url.QueryEscape(raw)
	}
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}
