package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// errLinkTaken rolls a resolve transaction back after a concurrent resolve
// of the same external identity committed its link first.
var errLinkTaken = errors.New("provider link taken by concurrent resolve")

// Resolver maps a provider assertion onto exactly one account, creating or
// linking as needed.
type Resolver struct {
	store IdentityStore
	audit Auditor
}

func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store, audit: noopAuditor{}}
}

func (r *Resolver) WithAudit(a Auditor) *Resolver {
	if a != nil {
		r.audit = a
	}
	return r
}

// Resolve runs link lookup, email match, account creation and link insert in
// one transaction. Repeated or concurrent calls for the same (provider,
// subject) return the same account and leave exactly one link.
func (r *Resolver) Resolve(ctx context.Context, a domain.ProviderAssertion) (domain.Account, error) {
	provider := strings.TrimSpace(a.Provider)
	subject := strings.TrimSpace(a.Subject)
	if provider == "" {
		return domain.Account{}, domain.ErrMissingField("provider")
	}
	if subject == "" {
		return domain.Account{}, domain.ErrMissingField("subject")
	}
	email := domain.NormalizeEmail(a.Email)
	name := strings.TrimSpace(a.Name)

	var (
		out     domain.Account
		created bool
		linked  bool
	)

	err := r.store.InTx(ctx, func(q Queries) error {
		created, linked = false, false

		acc, err := q.FindAccountByLink(ctx, provider, subject)
		if err == nil {
			out = acc
			return nil
		}
		if !domain.Is(err, "account_not_found") {
			return err
		}

		ra, err := r.accountFor(ctx, q, email, name)
		if err != nil {
			return err
		}
		created = ra.created

		inserted, err := q.InsertLink(ctx, provider, subject, ra.ID)
		if err != nil {
			return err
		}
		if !inserted {
			// Someone else linked this identity between our lookup and insert.
			// Their link wins; anything we created here is discarded.
			winner, err := q.FindAccountByLink(ctx, provider, subject)
			if err != nil {
				return err
			}
			out = winner
			return errLinkTaken
		}

		linked = true
		out = ra.Account
		return nil
	})
	if errors.Is(err, errLinkTaken) {
		return out, nil
	}
	if err != nil {
		return domain.Account{}, err
	}

	if created {
		r.audit.AccountCreated(ctx, out.ID, provider)
	}
	if linked {
		r.audit.ProviderLinked(ctx, out.ID, provider)
	}
	return out, nil
}

type resolvedAccount struct {
	domain.Account
	created bool
}

// accountFor reuses the account holding email, or creates one. Without an
// email the new account is reachable only through its provider link.
func (r *Resolver) accountFor(ctx context.Context, q Queries, email, name string) (resolvedAccount, error) {
	if email != "" {
		acc, err := q.FindAccountByEmail(ctx, email)
		if err == nil {
			return resolvedAccount{Account: acc}, nil
		}
		if !domain.Is(err, "account_not_found") {
			return resolvedAccount{}, err
		}
	}

	acc, err := q.CreateAccount(ctx, email, name)
	if err != nil {
		return resolvedAccount{}, err
	}
	return resolvedAccount{Account: acc, created: true}, nil
}
