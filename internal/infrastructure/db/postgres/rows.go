package postgres

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

type accountRow struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}

type deletionTokenRow struct {
	Hash      string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r deletionTokenRow) toDomain() domain.DeletionToken {
	return domain.DeletionToken{
		Hash:      r.Hash,
		AccountID: r.AccountID,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
