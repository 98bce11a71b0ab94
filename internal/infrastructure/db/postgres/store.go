package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the postgres IdentityStore. Its embedded queries run on the pool;
// InTx hands fn a queries value bound to one transaction.
type Store struct {
	queries
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{queries: queries{db: db}, db: db}
}

var _ auth.IdentityStore = (*Store)(nil)

// InTx runs fn in a single READ COMMITTED transaction. The transaction is
// detached from ctx cancellation so a client disconnect cannot leave it half
// applied; it commits only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(q auth.Queries) error) (err error) {
	txCtx := context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(queries{db: tx, ctx: txCtx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// Ping is used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
