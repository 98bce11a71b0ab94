package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

type queries struct {
	db dbtx
	// ctx, when set, replaces the caller's context (transaction-bound queries).
	ctx context.Context
}

func (q queries) use(ctx context.Context) context.Context {
	if q.ctx != nil {
		return q.ctx
	}
	return ctx
}

// ---------- accounts ----------

const accountColumns = `a.id, a.email, a.name, a.created_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var ar accountRow
	if err := row.Scan(&ar.ID, &ar.Email, &ar.Name, &ar.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return ar.toDomain(), nil
}

func (q queries) FindAccountByLink(ctx context.Context, provider, subject string) (domain.Account, error) {
	const stmt = `
SELECT ` + accountColumns + `
FROM provider_links l
JOIN accounts a ON a.id = l.account_id
WHERE l.provider = $1 AND l.provider_subject = $2
LIMIT 1;
`
	return scanAccount(q.db.QueryRowContext(q.use(ctx), stmt, provider, subject))
}

func (q queries) FindAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrAccountNotFound()
	}

	const stmt = `
SELECT ` + accountColumns + `
FROM accounts a
WHERE a.email = $1
ORDER BY a.created_at ASC, a.id ASC
LIMIT 1;
`
	return scanAccount(q.db.QueryRowContext(q.use(ctx), stmt, email))
}

func (q queries) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		// not one of ours; avoid a cast error from postgres
		return domain.Account{}, domain.ErrAccountNotFound()
	}

	const stmt = `
SELECT ` + accountColumns + `
FROM accounts a
WHERE a.id = $1
LIMIT 1;
`
	return scanAccount(q.db.QueryRowContext(q.use(ctx), stmt, id))
}

func (q queries) CreateAccount(ctx context.Context, email, name string) (domain.Account, error) {
	const stmt = `
INSERT INTO accounts (id, email, name)
VALUES ($1, $2, $3)
RETURNING id, email, name, created_at;
`
	return scanAccount(q.db.QueryRowContext(q.use(ctx), stmt,
		uuid.NewString(), domain.NormalizeEmail(email), strings.TrimSpace(name),
	))
}

func (q queries) DeleteAccount(ctx context.Context, id string) error {
	const stmt = `DELETE FROM accounts WHERE id = $1;`

	res, err := q.db.ExecContext(q.use(ctx), stmt, id)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound()
	}
	return nil
}

// ---------- provider links ----------

func (q queries) InsertLink(ctx context.Context, provider, subject, accountID string) (bool, error) {
	const stmt = `
INSERT INTO provider_links (provider, provider_subject, account_id)
VALUES ($1, $2, $3)
ON CONFLICT (provider, provider_subject) DO NOTHING;
`
	res, err := q.db.ExecContext(q.use(ctx), stmt, provider, subject, accountID)
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return n == 1, nil
}

// ---------- deletion tokens ----------

func (q queries) InsertDeletionToken(ctx context.Context, t domain.DeletionToken) error {
	const stmt = `
INSERT INTO deletion_tokens (token_hash, account_id, expires_at)
VALUES ($1, $2, $3);
`
	if _, err := q.db.ExecContext(q.use(ctx), stmt, t.Hash, t.AccountID, t.ExpiresAt); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (q queries) LockDeletionToken(ctx context.Context, hash string) (domain.DeletionToken, error) {
	const stmt = `
SELECT token_hash, account_id, expires_at, created_at
FROM deletion_tokens
WHERE token_hash = $1
FOR UPDATE;
`
	var tr deletionTokenRow
	err := q.db.QueryRowContext(q.use(ctx), stmt, hash).Scan(&tr.Hash, &tr.AccountID, &tr.ExpiresAt, &tr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeletionToken{}, domain.ErrDeletionTokenNotFound()
		}
		return domain.DeletionToken{}, domain.ErrDBUnavailable(err)
	}
	return tr.toDomain(), nil
}

func (q queries) DeleteDeletionTokensForAccount(ctx context.Context, accountID string) error {
	const stmt = `DELETE FROM deletion_tokens WHERE account_id = $1;`

	if _, err := q.db.ExecContext(q.use(ctx), stmt, accountID); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (q queries) PurgeExpiredDeletionTokens(ctx context.Context, now time.Time) error {
	const stmt = `DELETE FROM deletion_tokens WHERE expires_at <= $1;`

	if _, err := q.db.ExecContext(q.use(ctx), stmt, now); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
