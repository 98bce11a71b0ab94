package auth

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// Queries is the set of storage primitives the identity flows run on. The
// same methods are available outside and inside a transaction.
//
// Lookups that miss return domain.ErrAccountNotFound or
// domain.ErrDeletionTokenNotFound; everything else is a storage failure.
type Queries interface {
	FindAccountByLink(ctx context.Context, provider, subject string) (domain.Account, error)
	// FindAccountByEmail returns the oldest account holding the address.
	FindAccountByEmail(ctx context.Context, email string) (domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	CreateAccount(ctx context.Context, email, name string) (domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// InsertLink is conflict tolerant: it reports false when the
	// (provider, subject) pair already exists and leaves it untouched.
	InsertLink(ctx context.Context, provider, subject, accountID string) (bool, error)

	InsertDeletionToken(ctx context.Context, t domain.DeletionToken) error
	// LockDeletionToken reads a token row and holds it until the transaction ends.
	LockDeletionToken(ctx context.Context, hash string) (domain.DeletionToken, error)
	DeleteDeletionTokensForAccount(ctx context.Context, accountID string) error
	PurgeExpiredDeletionTokens(ctx context.Context, now time.Time) error
}

// IdentityStore runs Queries directly or inside a single transaction.
// InTx commits when fn returns nil and rolls back otherwise.
type IdentityStore interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// SessionStore maps opaque session ids to account ids.
type SessionStore interface {
	Create(ctx context.Context, accountID string, ttl time.Duration) (string, error)
	// Get returns domain.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// OAuthState is what survives the browser round trip to the provider.
type OAuthState struct {
	Provider string          `json:"provider"`
	Mode     domain.AuthMode `json:"mode"`
	Redirect string          `json:"redirect,omitempty"`
	Verifier string          `json:"verifier"`
}

// OAuthStateStore hands out single-use state tokens.
type OAuthStateStore interface {
	Create(ctx context.Context, state OAuthState) (string, error)
	// Consume returns domain.ErrOAuthStateInvalid for unknown, expired or reused tokens.
	Consume(ctx context.Context, token string) (OAuthState, error)
}

// OAuthProvider performs the provider side of the handshake. It returns
// identity facts only and never touches accounts or sessions.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state, verifier, redirectURL string) string
	Exchange(ctx context.Context, code, verifier, redirectURL string) (domain.ProviderAssertion, error)
}

// ProviderRegistry looks providers up by route name.
type ProviderRegistry interface {
	Get(name string) (OAuthProvider, error)
}

// BearerCodec creates and verifies portable signed credentials.
type BearerCodec interface {
	Sign(id domain.Identity) (string, error)
	Verify(token string) (domain.BearerClaims, error)
}

// DeletionEmail is the content handed to the notifier.
type DeletionEmail struct {
	To        string
	Name      string
	Link      string
	ExpiresAt time.Time
}

// DeletionNotifier delivers deletion links. Delivery is fire-and-forget:
// failures are logged by the caller and never surfaced to the requester.
type DeletionNotifier interface {
	SendDeletionLink(ctx context.Context, msg DeletionEmail) error
}

// Auditor receives business events. All methods must be safe to call concurrently.
type Auditor interface {
	AccountCreated(ctx context.Context, accountID, provider string)
	ProviderLinked(ctx context.Context, accountID, provider string)
	Login(ctx context.Context, accountID, provider, mode string)
	Logout(ctx context.Context, accountID string)
	DeletionRequested(ctx context.Context, accountID, email string)
	AccountDeleted(ctx context.Context, accountID string)
}

type noopAuditor struct{}

func (noopAuditor) AccountCreated(context.Context, string, string)    {}
func (noopAuditor) ProviderLinked(context.Context, string, string)    {}
func (noopAuditor) Login(context.Context, string, string, string)     {}
func (noopAuditor) Logout(context.Context, string)                    {}
func (noopAuditor) DeletionRequested(context.Context, string, string) {}
func (noopAuditor) AccountDeleted(context.Context, string)            {}
